package uow

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRetryable marks transient contention. The caller may repeat the
	// whole operation with identical input.
	ErrRetryable = errors.New("uow: transient storage contention, retry the operation")
	// ErrStorageFailure marks a persistence error that a retry will not fix.
	ErrStorageFailure = errors.New("uow: storage failure")
)

// Retryable wraps err so it matches ErrRetryable while keeping the cause.
func Retryable(err error) error {
	if err == nil || errors.Is(err, ErrRetryable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// StorageFailure wraps err so it matches ErrStorageFailure.
func StorageFailure(err error) error {
	if err == nil || errors.Is(err, ErrStorageFailure) || errors.Is(err, ErrRetryable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// IsTimeout reports whether err comes from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

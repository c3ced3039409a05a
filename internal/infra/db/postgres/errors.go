package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"staybook/internal/app/uow"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// classify maps driver errors onto the unit of work error kinds.
// Serialization failures and deadlocks are the expected outcome of two
// writers racing on one property.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if uow.IsTimeout(err) {
		return uow.Retryable(err)
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return uow.Retryable(err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return uow.Retryable(err)
	}
	return uow.StorageFailure(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/app/uow"
)

const codeWriteConflict = 112

// classify maps driver errors onto the unit of work error kinds. Transient
// transaction errors and write conflicts mean another writer holds the property.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if uow.IsTimeout(err) || mongo.IsTimeout(err) {
		return uow.Retryable(err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("UnknownTransactionCommitResult") ||
			se.HasErrorCode(codeWriteConflict) {
			return uow.Retryable(err)
		}
	}
	if mongo.IsNetworkError(err) {
		return uow.Retryable(err)
	}
	return uow.StorageFailure(err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(&pq.Error{Code: codeSerializationFailure}), uow.ErrRetryable)
	assert.ErrorIs(t, classify(&pq.Error{Code: codeDeadlockDetected}), uow.ErrRetryable)
	assert.ErrorIs(t, classify(fmt.Errorf("lock: %w", &pq.Error{Code: codeLockNotAvailable})), uow.ErrRetryable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), uow.ErrRetryable)
	assert.ErrorIs(t, classify(&pq.Error{Code: "42P01"}), uow.ErrStorageFailure)
	assert.ErrorIs(t, classify(errors.New("boom")), uow.ErrStorageFailure)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: codeUniqueViolation})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: codeSerializationFailure}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestListWhere(t *testing.T) {
	where, args := listWhere("property_id", "p-1", booking.Filter{})
	assert.Equal(t, "property_id = $1", where)
	assert.Equal(t, []any{"p-1"}, args)

	where, args = listWhere("user_id", "u-1", booking.Filter{
		Statuses: []booking.Status{booking.StatusPending, booking.StatusApproved},
		From:     time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
	}.Normalize())
	assert.Equal(t, "user_id = $1 AND status = ANY($2) AND check_out > $3::date AND check_in < $4::date", where)
	require.Len(t, args, 4)
	assert.Equal(t, pq.Array([]string{"pending", "approved"}), args[1])
	assert.Equal(t, "2024-07-01", args[2])
	assert.Equal(t, "2024-07-10", args[3])
}

func TestFactory_RequiresDatabase(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})
	assert.ErrorIs(t, err, ErrUnitOfWorkNotConfigured)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, migrationsDir+"/*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestEncodeHeaders(t *testing.T) {
	b, err := encodeHeaders(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = encodeHeaders(map[string]string{"actor": "u-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"actor":"u-1"}`, string(b))
}

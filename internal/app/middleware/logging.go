package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
)

// Logging records every command with its duration. Storage failures are
// logged at error level; rejections by the domain at info.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		return nil
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := nextFn(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), time.Since(started), err)
			return res, err
		})
	}
}

// QueryLogging logs failed queries only.
func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		return nil
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			started := time.Now()
			res, err := nextFn(ctx, q)
			if err != nil {
				logOutcome(ctx, logger, "query", q.Key(), time.Since(started), err)
			}
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, took time.Duration, err error) {
	attrs := []any{kind, key, "duration_ms", took.Milliseconds()}
	switch {
	case err == nil:
		logger.DebugContext(ctx, kind+" handled", attrs...)
	case errors.Is(err, uow.ErrStorageFailure):
		logger.ErrorContext(ctx, kind+" failed", append(attrs, "error", err)...)
	case errors.Is(err, uow.ErrRetryable):
		logger.WarnContext(ctx, kind+" contended", append(attrs, "error", err)...)
	default:
		logger.InfoContext(ctx, kind+" rejected", append(attrs, "error", err)...)
	}
}

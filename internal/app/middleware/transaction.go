package middleware

import (
	"context"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// FixedTimeout applies the same bound to every command.
func FixedTimeout(timeout time.Duration) TxOptionsProvider {
	return func(commands.Command) uow.TxOptions {
		return uow.TxOptions{Timeout: timeout}
	}
}

// Transaction runs the rest of the chain inside one unit of work. A unit that
// outlives its timeout is rolled back and reported as uow.ErrRetryable.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			runCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			unit, err := factory.Begin(runCtx, opts)
			if err != nil {
				return nil, txError(ctx, err)
			}
			execCtx := uow.Bind(runCtx, unit)
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(context.WithoutCancel(execCtx))
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, txError(ctx, err)
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, txError(ctx, err)
			}
			committed = true
			return res, nil
		})
	}
}

// txError turns an expired unit deadline into ErrRetryable. A cancelled
// caller context is returned unchanged.
func txError(parent context.Context, err error) error {
	if uow.IsTimeout(err) && parent.Err() == nil {
		return uow.Retryable(err)
	}
	return err
}

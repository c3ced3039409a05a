package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/access"
)

// Validator checks struct tags of commands and queries.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorMessage is a command or query issued on behalf of a principal.
type ActorMessage interface {
	ActorPrincipal() access.Principal
}

// RequireActor rejects actor messages that carry no principal. Resource level
// checks stay in the handlers, where the booking and property are loaded.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	m, ok := message.(ActorMessage)
	if !ok {
		return nil
	}
	return m.ActorPrincipal().Require()
}

type checkFunc func(ctx context.Context, message any) error

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardCommands(v.Validate)
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardQueries(v.Validate)
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardCommands(a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardQueries(a.Authorize)
}

// guardCommands stops the command before the handler when check fails.
func guardCommands(check checkFunc) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func guardQueries(check checkFunc) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

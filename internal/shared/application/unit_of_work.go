package application

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
)

// UnitOfWork provides transactional support for aggregating multiple operations.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork executes fn inside a single atomic unit. Every read and write
// made through the returned context joins the same transaction; any error from
// fn (or a panic) rolls the whole unit back.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) (err error) {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(txCtx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// DefaultConflictAttempts bounds how often a unit is re-run after an optimistic
// write conflict.
const DefaultConflictAttempts = 3

// WithConflictRetry runs the unit of work and re-runs it from scratch when a
// guarded write lost a race. Each attempt is a fresh transaction, so nothing
// from the failed attempt survives. Exhausting the attempts surfaces a
// retryable store error to the caller. Only ErrConcurrentUpdate is retried.
func WithConflictRetry(ctx context.Context, uow UnitOfWork, attempts int, fn UnitOfWorkFunc) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = WithUnitOfWork(ctx, uow, fn)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return domain.ErrTransientStore.Wrap(err)
}

package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned when Commit or Rollback get a context that
// did not come from Begin.
var ErrNoTransaction = errors.New("no transaction in context")

// GenericUnitOfWork scopes repository calls to one transaction on any driver.
// A Begin under an existing transaction joins it; only the outermost unit
// commits or rolls back.
type GenericUnitOfWork struct {
	conn Connection
}

func NewUnitOfWork(conn Connection) *GenericUnitOfWork {
	return &GenericUnitOfWork{conn: conn}
}

func (u *GenericUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := TxInfoFromContext(ctx); ok {
		return WithTx(ctx, info.Tx, false), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, StoreError(err)
	}
	return WithTx(ctx, tx, true), nil
}

func (u *GenericUnitOfWork) Commit(ctx context.Context) error {
	return u.finish(ctx, Transaction.Commit)
}

func (u *GenericUnitOfWork) Rollback(ctx context.Context) error {
	return u.finish(ctx, Transaction.Rollback)
}

func (u *GenericUnitOfWork) finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !info.Owned {
		return nil
	}
	return StoreError(end(info.Tx, ctx))
}

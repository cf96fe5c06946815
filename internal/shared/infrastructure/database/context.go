package database

import "context"

type txKey struct{}

// TxInfo is the transaction a context carries. Owned marks the unit that
// began it and is therefore the one to commit or roll back.
type TxInfo struct {
	Tx    Transaction
	Owned bool
}

// WithTx returns a context whose repositories run inside tx.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxInfoFromContext returns the transaction in ctx, if any.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	return info, ok && info.Tx != nil
}

// ExecutorFromContext picks the open transaction over the bare connection, so
// a repository joins whatever unit of work its caller started.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if info, ok := TxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return conn
}

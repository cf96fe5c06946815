package database

import "context"

// Row is the single-row result shared by pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the cursor shared by pgx.Rows and *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports the effect of an Exec. sql.Result satisfies it directly.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Executor runs statements on a connection or inside a transaction.
// Repositories obtain one through ExecutorFromContext.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor bound to one database transaction.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open store.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

// ClassifyRow routes Scan errors through StoreError. No-rows errors are not
// store failures and come back unchanged, so IsNoRows still matches them.
func ClassifyRow(row Row) Row {
	return storeRow{row}
}

// ClassifyRows routes Scan and Err errors through StoreError.
func ClassifyRows(rows Rows) Rows {
	return storeRows{rows}
}

type storeRow struct{ row Row }

func (r storeRow) Scan(dest ...any) error {
	return StoreError(r.row.Scan(dest...))
}

type storeRows struct{ Rows }

func (r storeRows) Scan(dest ...any) error {
	return StoreError(r.Rows.Scan(dest...))
}

func (r storeRows) Err() error {
	return StoreError(r.Rows.Err())
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
)

func init() {
	database.RegisterPostgresDriver(NewConnection)
}

const (
	minConns          = 1
	healthCheckPeriod = 30 * time.Second
)

// Connection is the pooled production store.
type Connection struct {
	pool *pgxpool.Pool
}

// NewConnection opens a pool for cfg.URL and verifies it with a ping bounded
// by cfg.ConnectTimeout.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required for PostgreSQL")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if poolCfg.MinConns < minConns && poolCfg.MaxConns >= minConns {
		poolCfg.MinConns = minConns
	}
	poolCfg.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach PostgreSQL: %w", database.StoreError(err))
	}
	return &Connection{pool: pool}, nil
}

func (c *Connection) Driver() database.Driver {
	return database.DriverPostgres
}

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

func (c *Connection) Ping(ctx context.Context) error {
	return database.StoreError(c.pool.Ping(ctx))
}

func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, database.StoreError(err)
	}
	return &transaction{tx: tx}, nil
}

func (c *Connection) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(c.pool.Exec(ctx, query, args...))
}

func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return database.ClassifyRow(c.pool.QueryRow(ctx, query, args...))
}

func (c *Connection) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(c.pool.Query(ctx, query, args...))
}

type transaction struct {
	tx pgx.Tx
}

func (t *transaction) Commit(ctx context.Context) error {
	return database.StoreError(t.tx.Commit(ctx))
}

// Rollback after Commit is a no-op so it can always be deferred.
func (t *transaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return database.StoreError(err)
	}
	return nil
}

func (t *transaction) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(t.tx.Exec(ctx, query, args...))
}

func (t *transaction) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return database.ClassifyRow(t.tx.QueryRow(ctx, query, args...))
}

func (t *transaction) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(t.tx.Query(ctx, query, args...))
}

func execResult(tag pgconn.CommandTag, err error) (database.Result, error) {
	if err != nil {
		return nil, database.StoreError(err)
	}
	return result{tag: tag}, nil
}

func queryRows(rows pgx.Rows, err error) (database.Rows, error) {
	if err != nil {
		return nil, database.StoreError(err)
	}
	return database.ClassifyRows(cursor{rows: rows}), nil
}

// result adapts a command tag. Inserts that need a key use RETURNING.
type result struct {
	tag pgconn.CommandTag
}

func (r result) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

func (r result) LastInsertId() (int64, error) {
	return 0, errors.New("LastInsertId is not supported by PostgreSQL; use RETURNING")
}

// cursor gives pgx.Rows the error-returning Close of database.Rows.
type cursor struct {
	rows pgx.Rows
}

func (c cursor) Next() bool             { return c.rows.Next() }
func (c cursor) Scan(dest ...any) error { return c.rows.Scan(dest...) }
func (c cursor) Err() error             { return c.rows.Err() }

func (c cursor) Close() error {
	c.rows.Close()
	return nil
}

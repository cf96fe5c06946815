package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoRows is returned when a query expected to return a row returns none.
var ErrNoRows = errors.New("no rows in result set")

// IsNoRows returns true if the error indicates no rows were found.
// This handles both pgx.ErrNoRows and sql.ErrNoRows.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}

// SQLite primary result codes that signal lock contention.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// Postgres SQLSTATEs that mean the transaction lost a race and may be re-run.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// StoreError classifies a driver error. Timeouts, lock contention and dropped
// connections become domain.ErrTransientStore; serialization failures become
// domain.ErrConcurrentUpdate so the unit is re-run. Domain errors and
// everything else pass through unchanged.
func StoreError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return domain.ErrConcurrentUpdate.Wrap(err)
		}
		return err
	}

	if isTransient(err) {
		return domain.ErrTransientStore.Wrap(err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	return false
}

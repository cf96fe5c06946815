package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config selects and tunes the store.
type Config struct {
	// Driver is a name accepted by ParseDriver; empty detects it from URL.
	Driver Driver
	// URL is the Postgres connection string.
	URL string
	// SQLitePath is the database file for the SQLite driver. Defaults to
	// ~/.perks/perks.db.
	SQLitePath string
	// MaxConns caps the Postgres pool.
	MaxConns int
	// ConnectTimeout bounds the initial ping. Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout bounds how long opening a store may block.
const DefaultConnectTimeout = 10 * time.Second

type opener func(ctx context.Context, cfg Config) (Connection, error)

// Drivers register themselves from their own packages so that importing one
// backend does not link the other.
var openers = map[Driver]opener{}

// RegisterPostgresDriver installs the Postgres connection factory.
func RegisterPostgresDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	openers[DriverPostgres] = fn
}

// RegisterSQLiteDriver installs the SQLite connection factory.
func RegisterSQLiteDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	openers[DriverSQLite] = fn
}

// NewConnection opens the configured store. The driver package must have been
// imported for its side effect.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver, err := ParseDriver(string(cfg.Driver), cfg.URL)
	if err != nil {
		return nil, err
	}
	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("database driver %s is not linked into this binary", driver)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is where the local store lives when no path is set.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".perks", "perks.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

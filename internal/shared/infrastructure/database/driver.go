package database

import (
	"fmt"
	"strings"
)

// Driver names a store backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d is a backend this package can open.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

var driverNames = map[string]Driver{
	"postgres":   DriverPostgres,
	"postgresql": DriverPostgres,
	"pg":         DriverPostgres,
	"sqlite":     DriverSQLite,
	"sqlite3":    DriverSQLite,
}

// ParseDriver resolves a configured driver name, ignoring case. An empty name
// or "auto" defers to DetectDriver.
func ParseDriver(name, url string) (Driver, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		return DetectDriver(url), nil
	}
	if d, ok := driverNames[name]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unsupported database driver: %s", name)
}

var (
	sqlitePrefixes = []string{"sqlite://", "file:"}
	sqliteSuffixes = []string{".db", ".sqlite", ".sqlite3"}
)

// DetectDriver guesses the backend from a connection string. No URL means the
// local SQLite file; anything not recognisably SQLite is handed to Postgres.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}
	lower := strings.ToLower(url)
	for _, p := range sqlitePrefixes {
		if strings.HasPrefix(lower, p) {
			return DriverSQLite
		}
	}
	for _, s := range sqliteSuffixes {
		if strings.HasSuffix(lower, s) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}

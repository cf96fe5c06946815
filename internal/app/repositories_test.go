package app

import (
	"testing"

	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driverOnly reports a driver and nothing else.
type driverOnly struct {
	database.Connection
	driver database.Driver
}

func (d driverOnly) Driver() database.Driver { return d.driver }

func TestNewRepositories(t *testing.T) {
	tests := []struct {
		driver  database.Driver
		wantErr bool
	}{
		{database.DriverSQLite, false},
		{database.DriverPostgres, false},
		{database.Driver("mysql"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.driver), func(t *testing.T) {
			repos, err := NewRepositories(driverOnly{driver: tt.driver})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "mysql")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, repos.Subscriptions)
			assert.NotNil(t, repos.Plans)
			assert.NotNil(t, repos.Invitations)
			assert.NotNil(t, repos.Outbox)
		})
	}
}

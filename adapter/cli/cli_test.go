package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/app"
	"github.com/felixgeelhaar/perks/pkg/config"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withContainer(t *testing.T) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:         "test",
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "perks.db"),
		InvitationTTL:  7 * 24 * time.Hour,
	}
	c, err := app.NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	SetApp(NewApp(c))
	t.Cleanup(func() { SetApp(nil) })
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "perks dev")
	assert.Contains(t, out.String(), "(commit none, built unknown)")
}

func TestCommands_RequireApp(t *testing.T) {
	SetApp(nil)
	for _, cmd := range []*cobra.Command{healthCmd, migrateCmd, serveCmd} {
		cmd.SetContext(context.Background())
		assert.ErrorContains(t, cmd.RunE(cmd, nil), "app not initialized", cmd.Name())
	}
}

func TestMigrateCmd(t *testing.T) {
	withContainer(t)

	var out bytes.Buffer
	migrateCmd.SetContext(context.Background())
	migrateCmd.SetOut(&out)
	require.NoError(t, migrateCmd.RunE(migrateCmd, nil))

	assert.Contains(t, out.String(), "applied 000001_initial_schema.up.sql")
	assert.Contains(t, out.String(), "sqlite schema is up to date")
}

func TestHealthCmd(t *testing.T) {
	withContainer(t)

	var out bytes.Buffer
	healthCmd.SetContext(context.Background())
	healthCmd.SetOut(&out)
	require.NoError(t, healthCmd.RunE(healthCmd, nil))

	assert.Contains(t, out.String(), "healthy")
	assert.Contains(t, out.String(), "database: healthy")
}

func TestHealthCmd_JSON(t *testing.T) {
	withContainer(t)
	healthJSON = true
	t.Cleanup(func() { healthJSON = false })

	var out bytes.Buffer
	healthCmd.SetContext(context.Background())
	healthCmd.SetOut(&out)
	require.NoError(t, healthCmd.RunE(healthCmd, nil))

	var report observability.OverallHealth
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, observability.HealthStatusHealthy, report.Status)
	assert.Contains(t, report.Checks, "database")
}

func TestNewApp(t *testing.T) {
	withContainer(t)
	a := GetApp()
	require.NotNil(t, a)
	assert.Same(t, a.Container.Billing, a.Billing)
	assert.NotNil(t, a.Family.GetPlan)
	assert.NotNil(t, a.Clock)
}

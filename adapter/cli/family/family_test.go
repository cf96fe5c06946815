package family

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/adapter/cli"
	"github.com/felixgeelhaar/perks/internal/app"
	familyDomain "github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	userFlag = ""
	planFlag = ""
	tierFlag = "PLUS"
	cadenceFlag = "monthly"
	paymentMethodFlag = ""
	emailFlag = ""
	tokenFlag = ""
	memberFlag = ""
	invitationFlag = ""
}

func run(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, nil)
	return output.String(), err
}

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

	cli.SetApp(cli.NewApp(c))
	t.Cleanup(func() { cli.SetApp(nil) })
}

var (
	planIDPattern = regexp.MustCompile(`Created family plan ([0-9a-f-]{36})`)
	tokenPattern  = regexp.MustCompile(`Token: (\S+)`)
)

func TestFamilyCmds_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	for _, cmd := range []*cobra.Command{showCmd, createCmd, inviteCmd, acceptCmd, removeCmd, cancelCmd, revokeCmd} {
		out, err := run(t, cmd)
		require.NoError(t, err, cmd.Name())
		assert.Contains(t, out, "Managing family plans requires database connection.", cmd.Name())
	}
}

func TestFamilyCmds_Workflow(t *testing.T) {
	resetFlags()
	withContainer(t)
	ownerID, memberID := uuid.New(), uuid.New()

	userFlag = ownerID.String()
	paymentMethodFlag = "pm_test"
	out, err := run(t, createCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "4 seats")
	match := planIDPattern.FindStringSubmatch(out)
	require.Len(t, match, 2)
	planID := match[1]

	planFlag = planID
	emailFlag = "Kid@Example.com"
	out, err = run(t, inviteCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Invited kid@example.com")
	token := tokenPattern.FindStringSubmatch(out)
	require.Len(t, token, 2)

	userFlag = memberID.String()
	tokenFlag = token[1]
	out, err = run(t, acceptCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 members)")

	_, err = run(t, acceptCmd)
	assert.ErrorIs(t, err, familyDomain.ErrInvalidOrExpiredInvitation)

	planFlag = ""
	out, err = run(t, showCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Seats: 2/4")
	assert.Contains(t, out, "Member:  "+memberID.String())

	planFlag = planID
	memberFlag = memberID.String()
	_, err = run(t, removeCmd)
	assert.ErrorIs(t, err, sharedDomain.ErrNotAuthorized)

	userFlag = ownerID.String()
	out, err = run(t, removeCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed "+memberID.String())

	out, err = run(t, cancelCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Canceled family plan "+planID)
}

func TestFamilyCmds_FlagValidation(t *testing.T) {
	resetFlags()
	withContainer(t)

	_, err := run(t, createCmd)
	assert.ErrorContains(t, err, "--user is required")

	userFlag = "not-a-uuid"
	_, err = run(t, createCmd)
	assert.ErrorContains(t, err, "invalid --user")

	userFlag = uuid.NewString()
	_, err = run(t, createCmd)
	assert.Equal(t, sharedDomain.KindInvalidInput, sharedDomain.KindOf(err), "paid plans need a payment method")

	paymentMethodFlag = "pm_test"
	tierFlag = "FREE"
	_, err = run(t, createCmd)
	assert.ErrorIs(t, err, familyDomain.ErrFreeTierPlan)

	_, err = run(t, revokeCmd)
	assert.ErrorContains(t, err, "--invitation is required")
}

package billing

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/adapter/cli"
	"github.com/felixgeelhaar/perks/internal/app"
	billingApp "github.com/felixgeelhaar/perks/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/pkg/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	priceTier = "FREE"
	priceCredits = 0
	priceUseCredits = false
	priceUser = ""
	creditsUser = ""
	consumeAmount = 0
	adviseTier = "FREE"
	adviseBookings = 0
	adviseSpending = 0
	adviseTickets = 0
	subscriptionUser = ""
	subscribeTier = ""
	subscribeCadence = ""
	subscribePayment = ""
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, args)
	return output.String(), err
}

func withContainer(t *testing.T) *cli.App {
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

	a := cli.NewApp(c)
	cli.SetApp(a)
	t.Cleanup(func() { cli.SetApp(nil) })
	return a
}

func TestPriceServiceCmd_Offline(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)
	priceTier = "plus"

	out, err := run(t, priceServiceCmd, "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "Final price:     85000")
}

func TestPriceServiceCmd_CreditsCapAtHalf(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)
	priceTier = "PRO"
	priceCredits = 10000
	priceUseCredits = true

	out, err := run(t, priceServiceCmd, "50000")
	require.NoError(t, err)
	assert.Contains(t, out, "Credits applied: -10000")
	assert.Contains(t, out, "Final price:     27500")
}

func TestPriceServiceCmd_Errors(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	_, err := run(t, priceServiceCmd, "lots")
	assert.Error(t, err)

	priceTier = "GOLD"
	_, err = run(t, priceServiceCmd, "100")
	assert.ErrorIs(t, err, billingDomain.ErrInvalidTier)

	resetFlags()
	priceUser = uuid.NewString()
	out, err := run(t, priceServiceCmd, "100")
	require.NoError(t, err)
	assert.Contains(t, out, "requires database connection")
}

func TestPriceBundleCmd(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)
	priceTier = "PRO"

	out, err := run(t, priceBundleCmd, "100000", "100000", "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "Bundle discount: -13500 (6%)")
	assert.Contains(t, out, "Final price:     211500")

	_, err = run(t, priceBundleCmd, "100000", "-1")
	assert.Error(t, err)
}

func TestAdviseCmd(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)
	adviseSpending = 200000

	out, err := run(t, AdviseCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Upgrade FREE -> PLUS (cost)")

	resetFlags()
	adviseTier = "PRO"
	adviseSpending = 900000
	out, err = run(t, AdviseCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "no upgrade suggested")
}

func TestCreditsCmds_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	out, err := run(t, balanceCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "requires database connection")

	for _, cmd := range []*cobra.Command{consumeCmd, refreshCmd, subscriptionShowCmd, subscriptionCancelCmd} {
		out, err = run(t, cmd)
		require.NoError(t, err, cmd.Name())
		assert.Contains(t, out, "requires database connection", cmd.Name())
	}

	subscribeTier = "PLUS"
	out, err = run(t, subscribeCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Selecting a tier requires database connection.")
}

func TestSubscriptionCmds_Lifecycle(t *testing.T) {
	resetFlags()
	withContainer(t)
	userID := uuid.New()
	subscriptionUser = userID.String()

	_, err := run(t, subscriptionShowCmd)
	assert.ErrorIs(t, err, billingDomain.ErrSubscriptionNotFound)

	subscribeTier = "plus"
	_, err = run(t, subscribeCmd)
	require.Error(t, err, "a paid tier needs a payment method on file")

	subscribePayment = "pm_visa"
	out, err := run(t, subscribeCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Tier:    PLUS (monthly)")
	assert.Contains(t, out, "Status:  ACTIVE")

	subscribeTier = "PRO"
	subscribeCadence = "yearly"
	subscribePayment = ""
	out, err = run(t, subscribeCmd)
	require.NoError(t, err, "the stored method carries over on upgrade")
	assert.Contains(t, out, "Tier:    PRO (yearly)")

	creditsUser = userID.String()
	consumeAmount = 10000
	_, err = run(t, consumeCmd)
	require.NoError(t, err)
	out, err = run(t, refreshCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Credits refreshed: 25000 remaining")

	out, err = run(t, subscriptionCancelCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  CANCELED")

	out, err = run(t, subscriptionShowCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  CANCELED")
}

func TestCreditsCmds_WithContainer(t *testing.T) {
	resetFlags()
	a := withContainer(t)

	userID := uuid.New()
	_, err := a.Billing.Subscribe(context.Background(), billingApp.SubscribeCommand{
		UserID:        userID,
		Tier:          billingDomain.TierPro,
		PaymentMethod: "pm_test",
	})
	require.NoError(t, err)

	creditsUser = userID.String()
	out, err := run(t, balanceCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Remaining:   25000")

	consumeAmount = 30000
	out, err = run(t, consumeCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 25000 of 30000 (shortfall 5000), 0 remaining")

	consumeAmount = 1
	_, err = run(t, consumeCmd)
	assert.ErrorIs(t, err, billingDomain.ErrInsufficientCredits)

	creditsUser = uuid.NewString()
	_, err = run(t, balanceCmd)
	assert.ErrorIs(t, err, billingDomain.ErrSubscriptionNotFound)
}

func TestPriceServiceCmd_QuotesForUser(t *testing.T) {
	resetFlags()
	a := withContainer(t)

	userID := uuid.New()
	_, err := a.Billing.Subscribe(context.Background(), billingApp.SubscribeCommand{
		UserID:        userID,
		Tier:          billingDomain.TierPlus,
		PaymentMethod: "pm_test",
	})
	require.NoError(t, err)

	priceUser = userID.String()
	out, err := run(t, priceServiceCmd, "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "Final price:     85000")
}

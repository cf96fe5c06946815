// Package billing holds the pricing, credits and upgrade advice commands.
package billing

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/perks/adapter/cli"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/spf13/cobra"
)

// PriceCmd is the pricing command group.
var PriceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price services against a tier",
	Long: `Compute the discount, bundle discount and credits for a charge.
Amounts are in minor currency units.`,
}

// CreditsCmd is the credits command group.
var CreditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and consume monthly credits",
}

// SubscriptionCmd is the standalone subscription command group.
var SubscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Select, inspect and cancel a user's tier",
}

func init() {
	PriceCmd.AddCommand(priceServiceCmd)
	PriceCmd.AddCommand(priceBundleCmd)
	CreditsCmd.AddCommand(balanceCmd)
	CreditsCmd.AddCommand(consumeCmd)
	CreditsCmd.AddCommand(refreshCmd)
	SubscriptionCmd.AddCommand(subscriptionShowCmd)
	SubscriptionCmd.AddCommand(subscribeCmd)
	SubscriptionCmd.AddCommand(subscriptionCancelCmd)
}

// pricer is satisfied by both the application service and the bare
// calculator, so pricing works without a database.
type pricer interface {
	PriceService(ctx context.Context, originalPrice int64, tier billingDomain.Tier, credits int64, useCredits bool) (billingDomain.PricingResult, error)
	PriceBundle(ctx context.Context, services []int64, tier billingDomain.Tier, credits int64) (billingDomain.PricingResult, error)
}

type offlinePricer struct {
	calc *billingDomain.Calculator
}

func (p offlinePricer) PriceService(_ context.Context, price int64, tier billingDomain.Tier, credits int64, useCredits bool) (billingDomain.PricingResult, error) {
	return p.calc.PriceService(price, tier, credits, useCredits)
}

func (p offlinePricer) PriceBundle(_ context.Context, services []int64, tier billingDomain.Tier, credits int64) (billingDomain.PricingResult, error) {
	return p.calc.PriceBundle(services, tier, credits)
}

func currentPricer() pricer {
	if app := cli.GetApp(); app != nil && app.Billing != nil {
		return app.Billing
	}
	return offlinePricer{calc: billingDomain.NewCalculator(billingDomain.DefaultCatalog())}
}

func printResult(w io.Writer, r billingDomain.PricingResult) {
	fmt.Fprintf(w, "Original price:  %d\n", r.OriginalPrice)
	fmt.Fprintf(w, "Tier discount:   -%d (%d%%)\n", r.DiscountAmount, r.DiscountPercentage)
	if r.BundleDiscountPercentage > 0 {
		fmt.Fprintf(w, "Bundle discount: -%d (%d%%)\n", r.BundleDiscount, r.BundleDiscountPercentage)
	}
	if r.CreditsApplied > 0 {
		fmt.Fprintf(w, "Credits applied: -%d\n", r.CreditsApplied)
	}
	fmt.Fprintf(w, "Final price:     %d\n", r.FinalPrice)
	fmt.Fprintf(w, "Total savings:   %d\n", r.TotalSavings)
}

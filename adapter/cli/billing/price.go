package billing

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/perks/adapter/cli"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	priceTier       string
	priceCredits    int64
	priceUseCredits bool
	priceUser       string
)

var priceServiceCmd = &cobra.Command{
	Use:   "service <amount>",
	Short: "Price a single service",
	Long: `Price a single service. With --user the tier and remaining credits
come from that user's subscription.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}

		var result billingDomain.PricingResult
		if priceUser != "" {
			app := cli.GetApp()
			if app == nil || app.Billing == nil {
				cli.PrintNeedsDatabase(cmd.OutOrStdout(), "Quoting for a user")
				return nil
			}
			userID, err := uuid.Parse(priceUser)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			result, err = app.Billing.Quote(cmd.Context(), userID, amount, priceUseCredits)
			if err != nil {
				return err
			}
		} else {
			tier, err := billingDomain.ParseTier(priceTier)
			if err != nil {
				return err
			}
			result, err = currentPricer().PriceService(cmd.Context(), amount, tier, priceCredits, priceUseCredits)
			if err != nil {
				return err
			}
		}

		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

var priceBundleCmd = &cobra.Command{
	Use:   "bundle <amount>...",
	Short: "Price services booked together",
	Long: `Price services booked together. Tiers with bundle pricing take 2% per
service off the discounted subtotal, up to 10%. Credits are always applied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services := make([]int64, len(args))
		for i, arg := range args {
			amount, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", arg, err)
			}
			services[i] = amount
		}
		tier, err := billingDomain.ParseTier(priceTier)
		if err != nil {
			return err
		}

		result, err := currentPricer().PriceBundle(cmd.Context(), services, tier, priceCredits)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{priceServiceCmd, priceBundleCmd} {
		c.Flags().StringVar(&priceTier, "tier", "FREE", "subscription tier (FREE, PLUS, PRO)")
		c.Flags().Int64Var(&priceCredits, "credits", 0, "credits available to apply")
	}
	priceServiceCmd.Flags().BoolVar(&priceUseCredits, "use-credits", false, "apply available credits")
	priceServiceCmd.Flags().StringVar(&priceUser, "user", "", "quote for this user's subscription")
}

package billing

import (
	"fmt"

	"github.com/felixgeelhaar/perks/adapter/cli"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/spf13/cobra"
)

var (
	adviseTier     string
	adviseBookings int64
	adviseSpending int64
	adviseTickets  int64
)

// AdviseCmd suggests a tier upgrade from last month's usage.
var AdviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Suggest a tier upgrade from monthly usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := billingDomain.ParseTier(adviseTier)
		if err != nil {
			return err
		}
		usage := billingDomain.Usage{
			Tier:            tier,
			MonthlyBookings: adviseBookings,
			MonthlySpending: adviseSpending,
			SupportTickets:  adviseTickets,
		}

		var suggestion *billingDomain.Suggestion
		if app := cli.GetApp(); app != nil && app.Billing != nil {
			suggestion, err = app.Billing.Advise(cmd.Context(), usage)
		} else {
			catalog := billingDomain.DefaultCatalog()
			suggestion, err = billingDomain.NewAdvisor(catalog, billingDomain.NewCalculator(catalog)).Suggest(usage)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if suggestion == nil {
			fmt.Fprintf(out, "%s fits your usage; no upgrade suggested.\n", tier)
			return nil
		}
		fmt.Fprintf(out, "Upgrade %s -> %s (%s)\n", suggestion.CurrentTier, suggestion.SuggestedTier, suggestion.Reason)
		fmt.Fprintf(out, "Projected savings: %d\n", suggestion.ProjectedSavings)
		fmt.Fprintf(out, "Incremental cost:  %d\n", suggestion.IncrementalCost)
		fmt.Fprintf(out, "Estimated savings: %d\n", suggestion.EstimatedSavings)
		fmt.Fprintln(out, suggestion.Justification)
		return nil
	},
}

func init() {
	AdviseCmd.Flags().StringVar(&adviseTier, "tier", "FREE", "current tier")
	AdviseCmd.Flags().Int64Var(&adviseBookings, "bookings", 0, "bookings last month")
	AdviseCmd.Flags().Int64Var(&adviseSpending, "spending", 0, "spending last month in minor units")
	AdviseCmd.Flags().Int64Var(&adviseTickets, "tickets", 0, "support tickets last month")
}

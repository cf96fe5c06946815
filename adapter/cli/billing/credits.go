package billing

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/perks/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	creditsUser   string
	consumeAmount int64
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show a user's credits for the current cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			cli.PrintNeedsDatabase(cmd.OutOrStdout(), "Checking credits")
			return nil
		}
		userID, err := uuid.Parse(creditsUser)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		balance, err := app.Billing.Ledger().Balance(cmd.Context(), userID, app.Clock.Now())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cycle start: %s\n", balance.CycleStart.Format(time.DateOnly))
		fmt.Fprintf(out, "Total:       %d\n", balance.Total)
		fmt.Fprintf(out, "Consumed:    %d\n", balance.Consumed)
		fmt.Fprintf(out, "Remaining:   %d\n", balance.Remaining)
		return nil
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Draw credits from a user's balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			cli.PrintNeedsDatabase(cmd.OutOrStdout(), "Consuming credits")
			return nil
		}
		userID, err := uuid.Parse(creditsUser)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		result, err := app.Billing.Ledger().Consume(cmd.Context(), userID, consumeAmount, app.Clock.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d of %d (shortfall %d), %d remaining\n",
			result.Applied, result.Requested, result.Shortfall, result.Balance.Remaining)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Restart a user's credit cycle with the full allotment",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			cli.PrintNeedsDatabase(cmd.OutOrStdout(), "Refreshing credits")
			return nil
		}
		userID, err := uuid.Parse(creditsUser)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		balance, err := app.Billing.Ledger().Refresh(cmd.Context(), userID, app.Clock.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Credits refreshed: %d remaining from %s\n",
			balance.Remaining, balance.CycleStart.Format(time.DateOnly))
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&creditsUser, "user", "", "user id")
	_ = refreshCmd.MarkFlagRequired("user")
	balanceCmd.Flags().StringVar(&creditsUser, "user", "", "user id")
	consumeCmd.Flags().StringVar(&creditsUser, "user", "", "user id")
	consumeCmd.Flags().Int64Var(&consumeAmount, "amount", 0, "credits to consume")
	_ = balanceCmd.MarkFlagRequired("user")
	_ = consumeCmd.MarkFlagRequired("user")
	_ = consumeCmd.MarkFlagRequired("amount")
}

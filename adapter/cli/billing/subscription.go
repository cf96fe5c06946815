package billing

import (
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/perks/adapter/cli"
	billingApp "github.com/felixgeelhaar/perks/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	subscriptionUser string
	subscribeTier    string
	subscribeCadence string
	subscribePayment string
)

func subscriptionApp(cmd *cobra.Command, feature string) (*cli.App, uuid.UUID, error) {
	app := cli.GetApp()
	if app == nil || app.Billing == nil {
		cli.PrintNeedsDatabase(cmd.OutOrStdout(), feature)
		return nil, uuid.Nil, nil
	}
	userID, err := uuid.Parse(subscriptionUser)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return app, userID, nil
}

var subscriptionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, err := subscriptionApp(cmd, "Showing a subscription")
		if app == nil || err != nil {
			return err
		}
		sub, err := app.Billing.GetSubscription(cmd.Context(), userID)
		if err != nil {
			return err
		}
		printSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "select",
	Short: "Select a tier for a user, creating the subscription if needed",
	Long: `Select a standalone tier. A paid tier needs --payment-method unless one
is already on file. Every tier change starts a fresh credit cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := billingDomain.ParseTier(subscribeTier)
		if err != nil {
			return err
		}
		var cadence billingDomain.Cadence
		if subscribeCadence != "" {
			if cadence, err = billingDomain.ParseCadence(subscribeCadence); err != nil {
				return err
			}
		}
		app, userID, err := subscriptionApp(cmd, "Selecting a tier")
		if app == nil || err != nil {
			return err
		}

		sub, err := app.Billing.Subscribe(cmd.Context(), billingApp.SubscribeCommand{
			UserID:        userID,
			Tier:          tier,
			Cadence:       cadence,
			PaymentMethod: subscribePayment,
		})
		if err != nil {
			return err
		}
		printSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}

var subscriptionCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a user's standalone subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, err := subscriptionApp(cmd, "Canceling a subscription")
		if app == nil || err != nil {
			return err
		}
		sub, err := app.Billing.CancelSubscription(cmd.Context(), userID)
		if err != nil {
			return err
		}
		printSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}

func printSubscription(w io.Writer, sub *billingDomain.Subscription) {
	fmt.Fprintf(w, "User:    %s\n", sub.UserID)
	fmt.Fprintf(w, "Tier:    %s (%s)\n", sub.Tier, sub.Cadence)
	fmt.Fprintf(w, "Status:  %s\n", sub.Status)
	if sub.FamilyPlanID != nil {
		fmt.Fprintf(w, "Family:  %s\n", *sub.FamilyPlanID)
	}
	fmt.Fprintf(w, "Cycle:   %s\n", sub.CycleStart.Format(time.DateOnly))
}

func init() {
	SubscriptionCmd.PersistentFlags().StringVar(&subscriptionUser, "user", "", "user id")
	subscribeCmd.Flags().StringVar(&subscribeTier, "tier", "", "FREE, PLUS or PRO")
	subscribeCmd.Flags().StringVar(&subscribeCadence, "cadence", "", "monthly or yearly")
	subscribeCmd.Flags().StringVar(&subscribePayment, "payment-method", "", "payment method reference")
	_ = subscribeCmd.MarkFlagRequired("tier")
}

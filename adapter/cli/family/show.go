package family

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a family plan with its members and pending invitations",
	Long:  `Show the plan --user belongs to, or the plan given by --plan.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}

		var query queries.GetPlanQuery
		var err error
		switch {
		case planFlag != "":
			query.FamilyPlanID, err = parseID("plan", planFlag)
		default:
			query.UserID, err = parseID("user", userFlag)
		}
		if err != nil {
			return err
		}

		view, err := app.Family.GetPlan.Handle(cmd.Context(), query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		p := view.Plan
		fmt.Fprintf(out, "Plan %s (%s, %s, %s)\n", p.ID, p.Tier, p.Cadence, p.Status)
		fmt.Fprintf(out, "Seats: %d/%d  Shared credits: %d\n", p.CurrentMembers, p.MaxMembers, p.SharedCreditPool)
		if view.Owner != nil {
			fmt.Fprintf(out, "Owner:   %s\n", view.Owner.UserID)
		}
		for _, m := range view.Members {
			fmt.Fprintf(out, "Member:  %s (joined %s)\n", m.UserID, m.JoinedAt.Format(time.DateOnly))
		}
		for _, inv := range view.PendingInvitations {
			fmt.Fprintf(out, "Invited: %s [%s] %s, expires %s\n", inv.Email, inv.Status, shortID(inv.ID), inv.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func init() {
	showCmd.Flags().StringVar(&planFlag, "plan", "", "family plan id")
}

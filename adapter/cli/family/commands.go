package family

import (
	"fmt"
	"time"

	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	"github.com/felixgeelhaar/perks/internal/family/application/commands"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a family plan owned by --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		ownerID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}
		tier, err := billingDomain.ParseTier(tierFlag)
		if err != nil {
			return err
		}
		cadence, err := billingDomain.ParseCadence(cadenceFlag)
		if err != nil {
			return err
		}

		res, err := app.Family.CreatePlan.Handle(cmd.Context(), commands.CreatePlanCommand{
			OwnerID:       ownerID,
			Tier:          tier,
			Cadence:       cadence,
			PaymentMethod: paymentMethodFlag,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created family plan %s (%d seats, %d shared credits)\n",
			res.PlanID, res.MaxMembers, res.SharedCreditPool)
		return nil
	},
}

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Invite an email address to the plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		inviterID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}
		planID, err := parseID("plan", planFlag)
		if err != nil {
			return err
		}

		res, err := app.Family.Invite.Handle(cmd.Context(), commands.InviteCommand{
			FamilyPlanID: planID,
			Email:        emailFlag,
			InviterID:    inviterID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invited %s (invitation %s, expires %s)\n",
			res.Email, res.InvitationID, res.ExpiresAt.Format(time.RFC3339))
		fmt.Fprintf(cmd.OutOrStdout(), "Token: %s\n", res.Token)
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept an invitation as --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		userID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}

		res, err := app.Family.AcceptInvitation.Handle(cmd.Context(), commands.AcceptInvitationCommand{
			Token:  tokenFlag,
			UserID: userID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Joined family plan %s (%d members)\n", res.PlanID, res.CurrentMembers)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a member from the plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		actorID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}
		planID, err := parseID("plan", planFlag)
		if err != nil {
			return err
		}
		memberID, err := parseID("member", memberFlag)
		if err != nil {
			return err
		}

		if err := app.Family.RemoveMember.Handle(cmd.Context(), commands.RemoveMemberCommand{
			FamilyPlanID: planID,
			MemberUserID: memberID,
			RemovedBy:    actorID,
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from family plan %s\n", memberID, planID)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the plan owned by --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		ownerID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}

		res, err := app.Family.CancelPlan.Handle(cmd.Context(), commands.CancelPlanCommand{OwnerID: ownerID})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Canceled family plan %s (%d members downgraded, %d invitations revoked)\n",
			res.PlanID, len(res.DowngradedMembers), res.RevokedInvitations)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a pending invitation",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd)
		if app == nil {
			return nil
		}
		actorID, err := parseID("user", userFlag)
		if err != nil {
			return err
		}
		invitationID, err := parseID("invitation", invitationFlag)
		if err != nil {
			return err
		}

		if err := app.Family.RevokeInvitation.Handle(cmd.Context(), commands.RevokeInvitationCommand{
			InvitationID: invitationID,
			RevokedBy:    actorID,
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked invitation %s\n", invitationID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&tierFlag, "tier", "PLUS", "plan tier (PLUS, PRO)")
	createCmd.Flags().StringVar(&cadenceFlag, "cadence", "monthly", "billing cadence (monthly, yearly)")
	createCmd.Flags().StringVar(&paymentMethodFlag, "payment-method", "", "payment method reference")

	inviteCmd.Flags().StringVar(&planFlag, "plan", "", "family plan id")
	inviteCmd.Flags().StringVar(&emailFlag, "email", "", "address to invite")

	acceptCmd.Flags().StringVar(&tokenFlag, "token", "", "invitation token")

	removeCmd.Flags().StringVar(&planFlag, "plan", "", "family plan id")
	removeCmd.Flags().StringVar(&memberFlag, "member", "", "member user id")

	revokeCmd.Flags().StringVar(&invitationFlag, "invitation", "", "invitation id")
}

// Package family holds the family plan commands.
package family

import (
	"fmt"

	"github.com/felixgeelhaar/perks/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the family plan command group.
var Cmd = &cobra.Command{
	Use:   "family",
	Short: "Manage family plans",
	Long: `Create family plans, invite members and manage seats. --user is the
acting user for every command.`,
}

var (
	userFlag          string
	planFlag          string
	tierFlag          string
	cadenceFlag       string
	paymentMethodFlag string
	emailFlag         string
	tokenFlag         string
	memberFlag        string
	invitationFlag    string
)

func init() {
	Cmd.PersistentFlags().StringVar(&userFlag, "user", "", "acting user id")

	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(inviteCmd)
	Cmd.AddCommand(acceptCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(revokeCmd)
}

func requireApp(cmd *cobra.Command) *cli.App {
	app := cli.GetApp()
	if app == nil || app.Family.CreatePlan == nil {
		cli.PrintNeedsDatabase(cmd.OutOrStdout(), "Managing family plans")
		return nil
	}
	return app
}

func parseID(name, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return id, nil
}

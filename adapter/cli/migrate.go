package cli

import (
	"fmt"

	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	Long: `Apply every bundled migration for the configured driver. Migrations
are idempotent, so running this against an up-to-date database is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("app not initialized")
		}

		conn := app.Container.DBConn
		if err := migrations.Run(cmd.Context(), conn); err != nil {
			return err
		}
		files, err := migrations.Files(conn.Driver())
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", f)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", conn.Driver())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

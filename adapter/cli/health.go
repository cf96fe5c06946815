package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/spf13/cobra"
)

var healthJSON bool

// errUnhealthy makes the process exit non-zero so scripts and probes can rely
// on the exit code alone.
var errUnhealthy = errors.New("service is unhealthy")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the configured dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("app not initialized")
		}

		registry := app.Container.Health
		health := registry.GetOverallHealth(cmd.Context())
		out := cmd.OutOrStdout()

		if healthJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(health); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, health.Status)
			for _, name := range registry.Components() {
				check := health.Checks[name]
				line := fmt.Sprintf("  %s: %s", name, check.Status)
				if check.Message != "" {
					line += " (" + check.Message + ")"
				}
				fmt.Fprintln(out, line)
			}
		}

		if health.Status == observability.HealthStatusUnhealthy {
			return errUnhealthy
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(healthCmd)
}

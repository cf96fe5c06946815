package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/perks/adapter/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr   string
	serveOutbox bool
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted. With --outbox the process also
drains the outbox, so a single binary is enough for local use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Container == nil {
			return fmt.Errorf("app not initialized")
		}
		c := app.Container

		cfg := api.DefaultServerConfig()
		cfg.Addr = serveAddr
		if cfg.Addr == "" {
			cfg.Addr = c.Config.APIAddr
		}
		server := api.NewServer(cfg, c)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if serveOutbox || c.Config.OutboxProcessorEnabled {
			publisher, err := c.EventPublisher()
			if err != nil {
				return fmt.Errorf("failed to create event publisher: %w", err)
			}
			defer publisher.Close()
			g.Go(func() error {
				return c.OutboxProcessor(publisher).Run(ctx)
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to API_ADDR)")
	serveCmd.Flags().BoolVar(&serveOutbox, "outbox", false, "also run the outbox processor")
	rootCmd.AddCommand(serveCmd)
}

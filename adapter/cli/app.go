package cli

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/perks/internal/app"
	billingApp "github.com/felixgeelhaar/perks/internal/billing/application"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

// App holds the CLI application dependencies.
type App struct {
	Container *app.Container

	Billing *billingApp.Service
	Family  app.FamilyHandlers
	Clock   sharedDomain.Clock
}

// NewApp creates the CLI app over a wired container.
func NewApp(c *app.Container) *App {
	return &App{
		Container: c,
		Billing:   c.Billing,
		Family:    c.Family,
		Clock:     c.Clock,
	}
}

// Global app instance, set by main after the container is built.
var globalApp *App

// SetApp sets the global app instance.
func SetApp(a *App) {
	globalApp = a
}

// GetApp returns the global app instance.
func GetApp() *App {
	return globalApp
}

// PrintNeedsDatabase tells the user that feature is unavailable in limited
// mode, where no store is connected.
func PrintNeedsDatabase(w io.Writer, feature string) {
	fmt.Fprintf(w, "%s requires database connection.\n", feature)
}

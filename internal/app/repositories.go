package app

import (
	"fmt"

	billingDomain "github.com/felixgeelhaar/perks/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/perks/internal/billing/infrastructure/persistence"
	familyDomain "github.com/felixgeelhaar/perks/internal/family/domain"
	familyPersistence "github.com/felixgeelhaar/perks/internal/family/infrastructure/persistence"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
)

// Repositories is every store served by one connection. They share the
// connection, so a unit of work over it covers all of them.
type Repositories struct {
	Subscriptions billingDomain.SubscriptionRepository
	Plans         familyDomain.PlanRepository
	Invitations   familyDomain.InvitationRepository
	Outbox        outbox.Repository
}

var dialects = map[database.Driver]func(database.Connection) Repositories{
	database.DriverPostgres: func(conn database.Connection) Repositories {
		return Repositories{
			Subscriptions: billingPersistence.NewPostgresSubscriptionRepository(conn),
			Plans:         familyPersistence.NewPostgresPlanRepository(conn),
			Invitations:   familyPersistence.NewPostgresInvitationRepository(conn),
			Outbox:        outbox.NewPostgresRepository(conn),
		}
	},
	database.DriverSQLite: func(conn database.Connection) Repositories {
		return Repositories{
			Subscriptions: billingPersistence.NewSQLiteSubscriptionRepository(conn),
			Plans:         familyPersistence.NewSQLitePlanRepository(conn),
			Invitations:   familyPersistence.NewSQLiteInvitationRepository(conn),
			Outbox:        outbox.NewSQLiteRepository(conn),
		}
	},
}

// NewRepositories builds the repositories for the connection's SQL dialect.
func NewRepositories(conn database.Connection) (Repositories, error) {
	build, ok := dialects[conn.Driver()]
	if !ok {
		return Repositories{}, fmt.Errorf("no repositories for database driver %q", conn.Driver())
	}
	return build(conn), nil
}

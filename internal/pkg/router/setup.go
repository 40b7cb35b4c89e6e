package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/repository"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/env"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all routes. The DB handle is injected from main and
// threaded through repositories and controllers; nothing here reaches for
// package-global state.
func InstallRouter(app *fiber.App, db *gorm.DB) {
	repos := repository.NewFactory(db).GetRepositories()

	billingRepo := billing.NewRepository(db)
	stripeClient := billing.NewStripeClient(env.GetEnv("STRIPE_SECRET_KEY", ""), billingRepo)
	verifier := billing.NewVerifier(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	reconciler := billing.NewReconciler(billingRepo)

	// Install HttpRouter first to initialize session store, oauth providers,
	// and the global UserContext middleware. Then register API routes which
	// depend on that middleware.
	setup(app,
		NewHttpRouter(db, repos, billingRepo, verifier, reconciler, stripeClient),
		NewApiRouter(billingRepo),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/controllers"
	"github.com/offlabel-design/launchbase/app/repository"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/middleware"
	"github.com/offlabel-design/launchbase/internal/pkg/oauth"
	"github.com/offlabel-design/launchbase/internal/pkg/session"
)

type HttpRouter struct {
	db      *gorm.DB
	main    *controllers.MainController
	auth    *controllers.AuthController
	oauth   *controllers.OAuthController
	billing *controllers.BillingController
	admin   *controllers.AdminController
}

func NewHttpRouter(db *gorm.DB, repos *repository.Repositories, billingRepo billing.Repository, verifier *billing.Verifier, reconciler *billing.Reconciler, stripeClient *billing.StripeClient) *HttpRouter {
	return &HttpRouter{
		db:      db,
		main:    controllers.NewMainController(billingRepo),
		auth:    controllers.NewAuthController(repos.User),
		oauth:   controllers.NewOAuthController(repos.User, repos.ProviderAccount),
		billing: controllers.NewBillingController(verifier, reconciler, billingRepo, stripeClient, repos.User),
		admin:   controllers.NewAdminController(repos.User, billingRepo),
	}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContext(h.db))

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)

	// catch-all, after every route
	app.Use(h.main.NotFound)
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContext middleware already set all user context.
	// All user information is available via usercontext.GetUserContext(c).
	return c.Next()
}

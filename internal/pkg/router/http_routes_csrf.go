package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/offlabel-design/launchbase/internal/pkg/env"
	"github.com/offlabel-design/launchbase/internal/pkg/middleware"
)

func (h *HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			// Webhooks authenticate with the provider signature, not a CSRF token.
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, h.main.HandleStart)
	group.Get("/pricing", loggedInMiddleware, h.main.HandlePricing)
	group.Get("/login", loggedInMiddleware, h.auth.HandleLogin)
	group.Post("/login", loggedInMiddleware, h.auth.HandleLogin)
	group.Get("/register", loggedInMiddleware, h.auth.HandleRegister)
	group.Post("/register", loggedInMiddleware, h.auth.HandleRegister)
	group.Get("/activate", loggedInMiddleware, h.auth.HandleActivate)

	group.Get("/dashboard", middleware.RequireAuth, h.main.HandleDashboard)

	// Billing flows initiated from forms
	group.Post("/billing/checkout", middleware.RequireAuth, h.billing.HandleCheckout)
	group.Post("/billing/portal", middleware.RequireAuth, h.billing.HandlePortal)
}

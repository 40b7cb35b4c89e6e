package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/offlabel-design/launchbase/internal/pkg/middleware"
)

func (h *HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Auth
	app.Post("/logout", middleware.RequireAuth, h.auth.HandleLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", h.oauth.HandleCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", h.billing.HandleWebhook)

	// Checkout return URLs hit by browser redirects from the provider
	app.Get("/billing/success", loggedInMiddleware, h.billing.HandleSuccess)
	app.Get("/billing/cancel", loggedInMiddleware, h.billing.HandleCancel)
}

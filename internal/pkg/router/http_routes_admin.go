package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/offlabel-design/launchbase/internal/pkg/middleware"
)

func (h *HttpRouter) registerAdminRoutes(app *fiber.App) {
	admin := app.Group("/admin", middleware.RequireAdmin)
	admin.Get("/", h.admin.HandleDashboard)
}

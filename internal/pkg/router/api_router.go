package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/entitlements"
	"github.com/offlabel-design/launchbase/internal/pkg/middleware"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
)

type ApiRouter struct {
	billingRepo billing.Repository
}

func NewApiRouter(billingRepo billing.Repository) *ApiRouter {
	return &ApiRouter{billingRepo: billingRepo}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/me", middleware.RequireAPISessionAuth, h.handleMe)
}

// handleMe returns the signed-in user's profile and subscription state.
func (h *ApiRouter) handleMe(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)

	resp := fiber.Map{
		"user_id":  uc.UserID,
		"username": uc.Username,
		"is_admin": uc.IsAdmin,
		"plan":     string(entitlements.Normalize(uc.Plan)),
	}

	sub, err := h.billingRepo.FindByUserID(c.Context(), uc.UserID)
	if err == nil {
		resp["plan"] = string(entitlements.Normalize(sub.Plan))
		resp["subscription_status"] = sub.Status
		if sub.CurrentPeriodEnd != nil {
			resp["current_period_end"] = sub.CurrentPeriodEnd
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "subscription lookup failed",
		})
	}

	return c.JSON(resp)
}

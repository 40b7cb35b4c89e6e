package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/offlabel-design/launchbase/app/repository"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
)

// AdminController serves the operator pages, currently the webhook delivery
// log used to audit reconciliation.
type AdminController struct {
	users       repository.UserRepository
	billingRepo billing.Repository
}

func NewAdminController(users repository.UserRepository, billingRepo billing.Repository) *AdminController {
	return &AdminController{users: users, billingRepo: billingRepo}
}

func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)

	userCount, err := ac.users.Count()
	if err != nil {
		log.Printf("admin: counting users failed: %v", err)
	}

	events, err := ac.billingRepo.ListRecentWebhookEvents(c.Context(), 50)
	if err != nil {
		log.Printf("admin: listing webhook events failed: %v", err)
	}

	return c.Render("admin/dashboard", fiber.Map{
		"Title":         "Admin",
		"IsLoggedIn":    uc.IsLoggedIn,
		"Username":      uc.Username,
		"UserCount":     userCount,
		"WebhookEvents": events,
		"Flash":         flash.Get(c),
	}, "layouts/main")
}

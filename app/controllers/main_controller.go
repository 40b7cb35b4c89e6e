package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/entitlements"
	"github.com/offlabel-design/launchbase/internal/pkg/env"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
)

// MainController serves the public pages and the signed-in dashboard.
type MainController struct {
	billingRepo billing.Repository
}

func NewMainController(billingRepo billing.Repository) *MainController {
	return &MainController{billingRepo: billingRepo}
}

func (mc *MainController) HandleStart(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)
	return c.Render("index", fiber.Map{
		"Title":      "Home",
		"IsLoggedIn": uc.IsLoggedIn,
		"Username":   uc.Username,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

func (mc *MainController) HandlePricing(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)
	return c.Render("pricing", fiber.Map{
		"Title":       "Pricing",
		"IsLoggedIn":  uc.IsLoggedIn,
		"CurrentPlan": uc.Plan,
		"ProPriceID":  env.GetEnv("STRIPE_PRICE_PRO", ""),
		"CSRF":        c.Locals("csrf"),
		"Flash":       flash.Get(c),
	}, "layouts/main")
}

func (mc *MainController) HandleDashboard(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)

	plan := entitlements.Normalize(uc.Plan)
	status := models.SubscriptionStatusInactive
	periodEnd := ""

	sub, err := mc.billingRepo.FindByUserID(c.Context(), uc.UserID)
	if err == nil {
		plan = entitlements.Normalize(sub.Plan)
		status = sub.Status
		if sub.CurrentPeriodEnd != nil {
			periodEnd = sub.CurrentPeriodEnd.Format("02.01.2006")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("dashboard: subscription lookup for user %d failed: %v", uc.UserID, err)
	}

	return c.Render("dashboard", fiber.Map{
		"Title":              "Dashboard",
		"IsLoggedIn":         uc.IsLoggedIn,
		"Username":           uc.Username,
		"Plan":               string(plan),
		"IsPaid":             plan != entitlements.PlanFree && status == models.SubscriptionStatusActive,
		"Status":             status,
		"PeriodEnd":          periodEnd,
		"MaxProjects":        entitlements.MaxProjects(plan),
		"HasPrioritySupport": entitlements.HasPrioritySupport(plan),
		"CSRF":               c.Locals("csrf"),
		"Flash":              flash.Get(c),
	}, "layouts/main")
}

func (mc *MainController) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("404", fiber.Map{
		"Title": "Not found",
	}, "layouts/main")
}

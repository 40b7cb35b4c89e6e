package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/app/repository"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
	"github.com/offlabel-design/launchbase/internal/pkg/env"
	"github.com/offlabel-design/launchbase/internal/pkg/session"
	icuser "github.com/offlabel-design/launchbase/internal/pkg/usercontext"
)

// BillingController owns the provider webhook endpoint and the
// checkout / customer-portal redirect flows.
type BillingController struct {
	verifier   *billing.Verifier
	reconciler *billing.Reconciler
	repo       billing.Repository
	stripe     *billing.StripeClient
	users      repository.UserRepository
}

func NewBillingController(verifier *billing.Verifier, reconciler *billing.Reconciler, repo billing.Repository, stripe *billing.StripeClient, users repository.UserRepository) *BillingController {
	return &BillingController{
		verifier:   verifier,
		reconciler: reconciler,
		repo:       repo,
		stripe:     stripe,
		users:      users,
	}
}

// HandleWebhook receives provider event deliveries.
// Contract: 400 for anything unauthenticated, 500 when the store fails so the
// provider retries, 200 for everything handled (including no-ops and
// duplicates) so the provider stops redelivering.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	// Copy the raw body; fiber reuses the underlying buffer after the
	// handler returns and the payload is persisted for audit.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	sigHeader := c.Get("Stripe-Signature")

	event, err := bc.verifier.Verify(rawBody, sigHeader)
	if err != nil {
		log.Printf("billing: webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid signature",
		})
	}

	created, stored, err := bc.repo.CreateWebhookEventIfNotExists(c.Context(), &models.WebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Printf("billing: persisting webhook event %s failed: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "webhook handler failed",
		})
	}
	if !created {
		// Redelivery of an event we already accepted.
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	decoded, err := billing.DecodeEvent(event)
	if err != nil {
		// Authenticated but undecodable: a handler failure, not a signature
		// problem. 500 makes the provider redeliver while operators look at
		// the recorded error.
		log.Printf("billing: decoding webhook event %s failed: %v", event.ID, err)
		if markErr := bc.repo.MarkWebhookProcessed(c.Context(), stored.ID, err.Error()); markErr != nil {
			log.Printf("billing: marking webhook event %s failed: %v", event.ID, markErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "webhook handler failed",
		})
	}
	if decoded == nil {
		// Event kind outside the dispatch set; acknowledged, not processed.
		if err := bc.repo.MarkWebhookProcessed(c.Context(), stored.ID, ""); err != nil {
			log.Printf("billing: marking webhook event %s failed: %v", event.ID, err)
		}
		return c.JSON(fiber.Map{"received": true})
	}

	if err := bc.reconciler.Apply(c.Context(), decoded); err != nil {
		log.Printf("billing: applying webhook event %s (%s) failed: %v", event.ID, event.Type, err)
		if markErr := bc.repo.MarkWebhookProcessed(c.Context(), stored.ID, err.Error()); markErr != nil {
			log.Printf("billing: marking webhook event %s failed: %v", event.ID, markErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "webhook handler failed",
		})
	}

	if err := bc.repo.MarkWebhookProcessed(c.Context(), stored.ID, ""); err != nil {
		log.Printf("billing: marking webhook event %s failed: %v", event.ID, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleCheckout starts a hosted checkout for the posted price and redirects
// the browser to the provider's payment page.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)
	if !uc.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	priceID := strings.TrimSpace(c.FormValue("price_id"))
	fm := fiber.Map{"type": "error"}
	if priceID == "" {
		fm["message"] = "No plan selected"
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	// Only sell prices we know how to map back to a plan.
	if _, err := bc.repo.FindPlanMapping(c.Context(), models.BillingProviderStripe, priceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fm["message"] = "Unknown plan"
			return flash.WithError(c, fm).Redirect("/pricing")
		}
		log.Printf("billing: plan mapping lookup failed: %v", err)
		fm["message"] = "Checkout is currently unavailable"
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	user, err := bc.users.GetByID(uc.UserID)
	if err != nil {
		fm["message"] = "Checkout is currently unavailable"
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	customerID, err := bc.stripe.GetOrCreateCustomer(c.Context(), user.ID, user.Email)
	if err != nil {
		log.Printf("billing: creating customer for user %d failed: %v", user.ID, err)
		fm["message"] = "Checkout is currently unavailable"
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	base := publicBaseURL()
	checkoutURL, err := bc.stripe.CreateCheckoutSession(c.Context(), customerID, priceID,
		base+"/billing/success", base+"/billing/cancel")
	if err != nil {
		log.Printf("billing: creating checkout session for user %d failed: %v", user.ID, err)
		fm["message"] = "Checkout is currently unavailable"
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	return c.Redirect(checkoutURL, fiber.StatusSeeOther)
}

// HandlePortal redirects a subscribed user to the provider's customer portal.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	uc := icuser.GetUserContext(c)
	if !uc.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	fm := fiber.Map{"type": "error"}
	sub, err := bc.repo.FindByUserID(c.Context(), uc.UserID)
	if err != nil || sub.StripeCustomerID == "" {
		fm["message"] = "No billing account yet. Pick a plan first."
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	portalURL, err := bc.stripe.CreatePortalSession(c.Context(), sub.StripeCustomerID, publicBaseURL()+"/dashboard")
	if err != nil {
		log.Printf("billing: creating portal session for user %d failed: %v", uc.UserID, err)
		fm["message"] = "Billing portal is currently unavailable"
		return flash.WithError(c, fm).Redirect("/dashboard")
	}

	return c.Redirect(portalURL, fiber.StatusSeeOther)
}

// HandleSuccess is the checkout return URL. Entitlements come from the
// webhook, not from this redirect; we only drop the cached plan so the next
// request re-reads the store.
func (bc *BillingController) HandleSuccess(c *fiber.Ctx) error {
	if sess, err := session.GetSessionStore().Get(c); err == nil {
		sess.Delete(icuser.KeyUserPlan)
		if err := sess.Save(); err != nil {
			log.Printf("billing: clearing cached plan failed: %v", err)
		}
	}

	fm := fiber.Map{"type": "success", "message": "Thanks! Your subscription will be active in a moment."}
	return flash.WithSuccess(c, fm).Redirect("/dashboard")
}

// HandleCancel is the checkout abort return URL.
func (bc *BillingController) HandleCancel(c *fiber.Ctx) error {
	fm := fiber.Map{"type": "info", "message": "Checkout canceled. Nothing was charged."}
	return flash.WithInfo(c, fm).Redirect("/pricing")
}

func publicBaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

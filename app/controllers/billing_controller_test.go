package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/internal/pkg/billing"
)

const testWebhookSecret = "whsec_test_secret"

// fakeBillingRepo is an in-memory billing.Repository for endpoint tests.
type fakeBillingRepo struct {
	subs      map[string]*models.Subscription // keyed by customer id
	events    map[string]*models.WebhookEvent // keyed by provider event id
	mappings  map[string]string               // price id -> plan
	nextID    uint
	saveCount int
	failNext  bool
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		subs:     make(map[string]*models.Subscription),
		events:   make(map[string]*models.WebhookEvent),
		mappings: make(map[string]string),
	}
}

func (f *fakeBillingRepo) FindByUserID(_ context.Context, userID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) FindByCustomerID(_ context.Context, customerID string) (*models.Subscription, error) {
	if s, ok := f.subs[customerID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) FindBySubscriptionID(_ context.Context, subscriptionID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.StripeSubscriptionID == subscriptionID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) Save(_ context.Context, sub *models.Subscription) error {
	f.saveCount++
	f.subs[sub.StripeCustomerID] = sub
	return nil
}

func (f *fakeBillingRepo) UpsertCustomerLink(_ context.Context, userID uint, customerID string) (*models.Subscription, error) {
	if s, ok := f.subs[customerID]; ok {
		return s, nil
	}
	f.nextID++
	s := &models.Subscription{
		ID:               f.nextID,
		UserID:           userID,
		StripeCustomerID: customerID,
		Status:           models.SubscriptionStatusInactive,
		Plan:             "free",
	}
	f.subs[customerID] = s
	return s, nil
}

func (f *fakeBillingRepo) FindPlanMapping(_ context.Context, provider, priceID string) (*models.PlanMapping, error) {
	if plan, ok := f.mappings[priceID]; ok {
		return &models.PlanMapping{Provider: provider, PriceID: priceID, InternalPlan: plan, IsActive: true}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if f.failNext {
		f.failNext = false
		return false, nil, fmt.Errorf("store unavailable")
	}
	if existing, ok := f.events[event.ProviderEventID]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.events[event.ProviderEventID] = event
	return true, event, nil
}

func (f *fakeBillingRepo) ListRecentWebhookEvents(_ context.Context, limit int) ([]models.WebhookEvent, error) {
	events := make([]models.WebhookEvent, 0, len(f.events))
	for _, ev := range f.events {
		events = append(events, *ev)
	}
	return events, nil
}

func (f *fakeBillingRepo) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

func signPayload(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookTestApp(repo *fakeBillingRepo) *fiber.App {
	bc := NewBillingController(
		billing.NewVerifier(testWebhookSecret),
		billing.NewReconciler(repo),
		repo,
		nil,
		nil,
	)
	app := fiber.New()
	app.Post("/webhooks/stripe", bc.HandleWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sig string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func checkoutCompletedPayload(eventID, customerID, subscriptionID, priceID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"mode": "subscription",
			"customer": %q,
			"subscription": %q,
			"metadata": {"price_id": %q}
		}}
	}`, eventID, customerID, subscriptionID, priceID))
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo)

	status, body := postWebhook(t, app, checkoutCompletedPayload("evt_1", "cus_1", "sub_1", "price_pro"), "")

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid signature", body["error"])
	assert.Empty(t, repo.events, "unauthenticated delivery must not be persisted")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "sub_1", "price_pro")
	sig := signPayload(t, "whsec_wrong_secret", payload)

	status, body := postWebhook(t, app, payload, sig)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid signature", body["error"])
	assert.Empty(t, repo.events)
	assert.Zero(t, repo.saveCount, "store must stay untouched")
}

func TestWebhookAppliesCheckoutCompleted(t *testing.T) {
	repo := newFakeBillingRepo()
	repo.mappings["price_pro"] = "pro"
	repo.subs["cus_1"] = &models.Subscription{
		ID:               1,
		UserID:           42,
		StripeCustomerID: "cus_1",
		Status:           models.SubscriptionStatusInactive,
		Plan:             "free",
	}
	app := newWebhookTestApp(repo)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "sub_1", "price_pro")
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	sub := repo.subs["cus_1"]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "pro", sub.Plan)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)

	stored := repo.events["evt_1"]
	require.NotNil(t, stored)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Empty(t, stored.ProcessingError)
}

func TestWebhookUnknownSubscriptionIsAcknowledgedNoOp(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo)

	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_missing", "status": "active", "current_period_end": 1769904000}}
	}`)
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Zero(t, repo.saveCount, "missing row must never be created by an update event")
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	repo := newFakeBillingRepo()
	repo.mappings["price_pro"] = "pro"
	repo.subs["cus_1"] = &models.Subscription{
		ID:               1,
		UserID:           42,
		StripeCustomerID: "cus_1",
		Status:           models.SubscriptionStatusInactive,
		Plan:             "free",
	}
	app := newWebhookTestApp(repo)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "sub_1", "price_pro")
	sig := signPayload(t, testWebhookSecret, payload)

	status, _ := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	savesAfterFirst := repo.saveCount

	status, body := postWebhook(t, app, payload, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, savesAfterFirst, repo.saveCount, "replay must not touch the store again")
}

func TestWebhookUnrecognizedEventKind(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo)

	payload := []byte(`{"id": "evt_3", "type": "invoice.paid", "data": {"object": {}}}`)
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Zero(t, repo.saveCount)

	stored := repo.events["evt_3"]
	require.NotNil(t, stored)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestWebhookStoreFailureReturns500(t *testing.T) {
	repo := newFakeBillingRepo()
	repo.failNext = true
	app := newWebhookTestApp(repo)

	payload := checkoutCompletedPayload("evt_4", "cus_1", "sub_1", "price_pro")
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "webhook handler failed", body["error"])
}

func TestWebhookMalformedCheckoutPayloadReturns500(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo)

	// Correctly signed but missing the customer reference. A signature
	// problem answers 400; anything after authentication answers 500 so the
	// provider redelivers.
	payload := []byte(`{
		"id": "evt_6",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "mode": "subscription"}}
	}`)
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "webhook handler failed", body["error"])
	assert.Zero(t, repo.saveCount)

	stored := repo.events["evt_6"]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ProcessingError, "decode failure must be recorded on the stored event")
}

func TestWebhookSubscriptionDeletedDowngrades(t *testing.T) {
	repo := newFakeBillingRepo()
	repo.subs["cus_1"] = &models.Subscription{
		ID:                   1,
		UserID:               42,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
		Plan:                 "pro",
	}
	app := newWebhookTestApp(repo)

	payload := []byte(`{
		"id": "evt_5",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "status": "canceled"}}
	}`)
	status, body := postWebhook(t, app, payload, signPayload(t, testWebhookSecret, payload))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	sub := repo.subs["cus_1"]
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, "free", sub.Plan)
}

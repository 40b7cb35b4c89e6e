package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
)

// memoryRepository is an in-memory Repository for reconciler tests.
type memoryRepository struct {
	subs     []*models.Subscription
	mappings map[string]string
	events   map[string]*models.WebhookEvent
	nextID   uint
	saves    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		mappings: map[string]string{},
		events:   map[string]*models.WebhookEvent{},
	}
}

func (m *memoryRepository) seed(sub models.Subscription) *models.Subscription {
	m.nextID++
	sub.ID = m.nextID
	s := &sub
	m.subs = append(m.subs, s)
	return s
}

func (m *memoryRepository) FindByUserID(_ context.Context, userID uint) (*models.Subscription, error) {
	for _, s := range m.subs {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) FindByCustomerID(_ context.Context, customerID string) (*models.Subscription, error) {
	for _, s := range m.subs {
		if s.StripeCustomerID == customerID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) FindBySubscriptionID(_ context.Context, subscriptionID string) (*models.Subscription, error) {
	for _, s := range m.subs {
		if s.StripeSubscriptionID == subscriptionID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) Save(_ context.Context, sub *models.Subscription) error {
	m.saves++
	for i, s := range m.subs {
		if s.ID == sub.ID {
			m.subs[i] = sub
			return nil
		}
	}
	m.subs = append(m.subs, sub)
	return nil
}

func (m *memoryRepository) UpsertCustomerLink(ctx context.Context, userID uint, customerID string) (*models.Subscription, error) {
	if s, err := m.FindByUserID(ctx, userID); err == nil {
		return s, nil
	}
	return m.seed(models.Subscription{
		UserID:           userID,
		StripeCustomerID: customerID,
		Status:           models.SubscriptionStatusInactive,
		Plan:             "free",
	}), nil
}

func (m *memoryRepository) FindPlanMapping(_ context.Context, provider, priceID string) (*models.PlanMapping, error) {
	plan, ok := m.mappings[priceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.PlanMapping{Provider: provider, PriceID: priceID, InternalPlan: plan, IsActive: true}, nil
}

func (m *memoryRepository) CreateWebhookEventIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := m.events[key]; ok {
		return false, stored, nil
	}
	m.nextID++
	event.ID = m.nextID
	m.events[key] = event
	return true, event, nil
}

func (m *memoryRepository) ListRecentWebhookEvents(_ context.Context, limit int) ([]models.WebhookEvent, error) {
	events := make([]models.WebhookEvent, 0, len(m.events))
	for _, ev := range m.events {
		events = append(events, *ev)
	}
	return events, nil
}

func (m *memoryRepository) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	for _, ev := range m.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return fmt.Errorf("webhook event %d not found", id)
}

func TestReconcilerCheckoutCompleted(t *testing.T) {
	repo := newMemoryRepository()
	repo.mappings["price_pro_monthly"] = "pro"
	repo.seed(models.Subscription{UserID: 1, StripeCustomerID: "cus_1", Status: models.SubscriptionStatusInactive, Plan: "free"})

	r := NewReconciler(repo)
	ev := CheckoutCompleted{CustomerID: "cus_1", SubscriptionID: "sub_1", PriceID: "price_pro_monthly"}
	if err := r.Apply(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := repo.FindByCustomerID(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("row lookup failed: %v", err)
	}
	if sub.StripeSubscriptionID != "sub_1" || sub.Status != models.SubscriptionStatusActive || sub.Plan != "pro" {
		t.Fatalf("unexpected row after checkout: %+v", sub)
	}

	// Replaying the identical event yields the same final state.
	if err := r.Apply(context.Background(), ev); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	sub, _ = repo.FindByCustomerID(context.Background(), "cus_1")
	if sub.StripeSubscriptionID != "sub_1" || sub.Status != models.SubscriptionStatusActive || sub.Plan != "pro" {
		t.Fatalf("replay changed the row: %+v", sub)
	}
}

func TestReconcilerCheckoutUnknownCustomer(t *testing.T) {
	repo := newMemoryRepository()

	r := NewReconciler(repo)
	err := r.Apply(context.Background(), CheckoutCompleted{CustomerID: "cus_missing", SubscriptionID: "sub_1"})
	if err != nil {
		t.Fatalf("missing row must be a no-op, got %v", err)
	}
	if len(repo.subs) != 0 || repo.saves != 0 {
		t.Fatalf("no row may be created from an update event")
	}
}

func TestReconcilerCheckoutUnmappedPriceDefaultsToPaidPlan(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(models.Subscription{UserID: 1, StripeCustomerID: "cus_1", Plan: "free"})

	r := NewReconciler(repo)
	if err := r.Apply(context.Background(), CheckoutCompleted{CustomerID: "cus_1", SubscriptionID: "sub_1", PriceID: "price_unknown"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, _ := repo.FindByCustomerID(context.Background(), "cus_1")
	if sub.Plan != "pro" {
		t.Fatalf("expected unmapped checkout price to default to pro, got %q", sub.Plan)
	}
}

func TestReconcilerSubscriptionUpdated(t *testing.T) {
	periodEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemoryRepository()
	repo.seed(models.Subscription{
		UserID:               1,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
		Plan:                 "pro",
		PriceID:              "price_pro_monthly",
	})

	r := NewReconciler(repo)
	err := r.Apply(context.Background(), SubscriptionUpdated{
		SubscriptionID:   "sub_1",
		ProviderStatus:   "past_due",
		CurrentPeriodEnd: &periodEnd,
		PriceID:          "price_pro_yearly",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, _ := repo.FindBySubscriptionID(context.Background(), "sub_1")
	if sub.Status != models.SubscriptionStatusInactive {
		t.Fatalf("non-active provider status must map to inactive, got %q", sub.Status)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("period end not refreshed: %v", sub.CurrentPeriodEnd)
	}
	if sub.PriceID != "price_pro_yearly" {
		t.Fatalf("price id not refreshed: %q", sub.PriceID)
	}
	if sub.Plan != "pro" {
		t.Fatalf("update events must not touch the plan, got %q", sub.Plan)
	}
}

func TestReconcilerUpdateUnknownSubscription(t *testing.T) {
	repo := newMemoryRepository()

	r := NewReconciler(repo)
	if err := r.Apply(context.Background(), SubscriptionUpdated{SubscriptionID: "sub_missing", ProviderStatus: "active"}); err != nil {
		t.Fatalf("missing row must be a no-op, got %v", err)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("no row may be created from an update event")
	}
}

func TestReconcilerSubscriptionDeleted(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(models.Subscription{
		UserID:               1,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
		Plan:                 "pro",
	})

	r := NewReconciler(repo)
	if err := r.Apply(context.Background(), SubscriptionDeleted{SubscriptionID: "sub_1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, _ := repo.FindBySubscriptionID(context.Background(), "sub_1")
	if sub.Status != models.SubscriptionStatusCanceled || sub.Plan != "free" {
		t.Fatalf("expected canceled/free, got %s/%s", sub.Status, sub.Plan)
	}
}

func TestReconcilerCheckoutThenDelete(t *testing.T) {
	repo := newMemoryRepository()
	repo.mappings["price_pro_monthly"] = "pro"

	// Row created by checkout initiation (customer linkage only).
	if _, err := repo.UpsertCustomerLink(context.Background(), 1, "cus_1"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	r := NewReconciler(repo)
	if err := r.Apply(context.Background(), CheckoutCompleted{CustomerID: "cus_1", SubscriptionID: "sub_1", PriceID: "price_pro_monthly"}); err != nil {
		t.Fatalf("checkout apply failed: %v", err)
	}

	sub, _ := repo.FindByCustomerID(context.Background(), "cus_1")
	if sub.StripeSubscriptionID != "sub_1" || sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("unexpected row after checkout: %+v", sub)
	}

	if err := r.Apply(context.Background(), SubscriptionDeleted{SubscriptionID: "sub_1"}); err != nil {
		t.Fatalf("delete apply failed: %v", err)
	}

	sub, _ = repo.FindByCustomerID(context.Background(), "cus_1")
	if sub.Status != models.SubscriptionStatusCanceled || sub.Plan != "free" {
		t.Fatalf("expected canceled/free after delete, got %s/%s", sub.Status, sub.Plan)
	}
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/internal/pkg/entitlements"
)

// Reconciler applies authenticated provider events to the Subscription Store.
// A lookup miss is a no-op, not an error: the provider retries failed
// deliveries indefinitely, and a missing row is a data-consistency question
// for operators, not a transient fault. Rows are only ever created by
// checkout initiation, never implicitly by an update event.
type Reconciler struct {
	repo Repository
}

func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Apply performs the store update for one event. Concurrent deliveries for
// the same row resolve last-write-wins at the store; the provider delivers
// events for a given subscription effectively in order.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, e)
	case SubscriptionUpdated:
		return r.applySubscriptionUpdated(ctx, e)
	case SubscriptionDeleted:
		return r.applySubscriptionDeleted(ctx, e)
	default:
		return fmt.Errorf("unhandled billing event variant %T", ev)
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, e CheckoutCompleted) error {
	sub, err := r.repo.FindByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: no subscription row for customer %s, ignoring checkout event", e.CustomerID)
			return nil
		}
		return err
	}

	plan, ok := resolvePlanForPrice(ctx, r.repo, e.PriceID)
	if !ok {
		// Checkout only completes against a paid price; an unmapped price id
		// still entitles the purchase while operators fix the mapping table.
		log.Printf("billing: no plan mapping for price %q, defaulting to %s", e.PriceID, entitlements.PlanPro)
		plan = string(entitlements.PlanPro)
	}

	sub.StripeSubscriptionID = e.SubscriptionID
	sub.Status = models.SubscriptionStatusActive
	sub.Plan = plan
	if e.PriceID != "" {
		sub.PriceID = e.PriceID
	}
	return r.repo.Save(ctx, sub)
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, e SubscriptionUpdated) error {
	sub, err := r.repo.FindBySubscriptionID(ctx, e.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: no subscription row for %s, ignoring update event", e.SubscriptionID)
			return nil
		}
		return err
	}

	if e.ProviderStatus == "active" {
		sub.Status = models.SubscriptionStatusActive
	} else {
		sub.Status = models.SubscriptionStatusInactive
	}
	if e.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = e.CurrentPeriodEnd
	}
	if e.PriceID != "" {
		sub.PriceID = e.PriceID
	}
	return r.repo.Save(ctx, sub)
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, e SubscriptionDeleted) error {
	sub, err := r.repo.FindBySubscriptionID(ctx, e.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: no subscription row for %s, ignoring delete event", e.SubscriptionID)
			return nil
		}
		return err
	}

	sub.Status = models.SubscriptionStatusCanceled
	sub.Plan = string(entitlements.PlanFree)
	return r.repo.Save(ctx, sub)
}

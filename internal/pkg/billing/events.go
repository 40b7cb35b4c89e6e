package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// Event is the closed set of provider notifications the reconciler handles.
// Keeping the variants in one sealed interface makes an unhandled kind a
// compile-time-visible gap in the reconciler's type switch.
type Event interface {
	Kind() string
}

// CheckoutCompleted signals that a hosted checkout finished and the customer
// now has an active subscription at the provider.
type CheckoutCompleted struct {
	CustomerID     string
	SubscriptionID string
	PriceID        string
}

func (CheckoutCompleted) Kind() string { return "checkout.session.completed" }

// SubscriptionUpdated signals a change to an existing provider subscription
// (renewal, plan change, payment failure, scheduled cancellation).
type SubscriptionUpdated struct {
	SubscriptionID    string
	ProviderStatus    string
	CurrentPeriodEnd  *time.Time
	PriceID           string
	CancelAtPeriodEnd bool
}

func (SubscriptionUpdated) Kind() string { return "customer.subscription.updated" }

// SubscriptionDeleted signals that the provider subscription ended.
type SubscriptionDeleted struct {
	SubscriptionID string
}

func (SubscriptionDeleted) Kind() string { return "customer.subscription.deleted" }

// Raw payload shapes for the fields we consume. The provider's event schema
// is not under our control, so we decode only what reconciliation needs.
type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// DecodeEvent maps a verified provider event onto one of the closed variants.
// Event kinds outside the dispatch set decode to (nil, nil); they are the
// provider's business, not ours.
func DecodeEvent(ev stripe.Event) (Event, error) {
	switch ev.Type {
	case "checkout.session.completed":
		var s checkoutSessionPayload
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		if s.Mode != "" && s.Mode != string(stripe.CheckoutSessionModeSubscription) {
			// One-off payment and setup sessions carry no subscription.
			return nil, nil
		}
		if strings.TrimSpace(s.Customer) == "" {
			return nil, fmt.Errorf("checkout session %s has no customer", s.ID)
		}
		return CheckoutCompleted{
			CustomerID:     s.Customer,
			SubscriptionID: s.Subscription,
			PriceID:        strings.TrimSpace(s.Metadata["price_id"]),
		}, nil

	case "customer.subscription.updated":
		var s subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		upd := SubscriptionUpdated{
			SubscriptionID:    s.ID,
			ProviderStatus:    s.Status,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		}
		if s.CurrentPeriodEnd > 0 {
			t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
			upd.CurrentPeriodEnd = &t
		}
		if len(s.Items.Data) > 0 {
			upd.PriceID = s.Items.Data[0].Price.ID
		}
		return upd, nil

	case "customer.subscription.deleted":
		var s subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return SubscriptionDeleted{SubscriptionID: s.ID}, nil
	}

	return nil, nil
}

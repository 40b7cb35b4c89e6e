package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription is this system's record of a user's billing relationship with
// the payment provider. One row per user, created when the user first starts
// a checkout (customer linkage only) and enriched by webhook reconciliation.
// Rows are never hard-deleted; cancellation transitions to canceled/free.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"stripe_subscription_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'inactive';index" json:"status"`
	Plan                 string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan"`
	PriceID              string     `gorm:"type:varchar(191);not null;default:''" json:"price_id"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the subscription currently entitles a paid plan.
func (s *Subscription) IsPaid() bool {
	return s.Status == SubscriptionStatusActive && s.Plan != "free"
}

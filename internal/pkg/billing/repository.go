package billing

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/offlabel-design/launchbase/app/models"
)

// Repository provides the Subscription Store operations used by the
// reconciler and the checkout flow. Lookups are keyed by provider customer id
// or provider subscription id, never by guessing the user from other data.
type Repository interface {
	FindByUserID(ctx context.Context, userID uint) (*models.Subscription, error)
	FindByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	UpsertCustomerLink(ctx context.Context, userID uint, customerID string) (*models.Subscription, error)

	FindPlanMapping(ctx context.Context, provider, priceID string) (*models.PlanMapping, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
	ListRecentWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// UpsertCustomerLink creates the row that ties a user to a provider customer
// the first time checkout is started. The customer id is immutable once set,
// so conflicts only refresh updated_at.
func (r *gormRepository) UpsertCustomerLink(ctx context.Context, userID uint, customerID string) (*models.Subscription, error) {
	sub := &models.Subscription{
		UserID:           userID,
		StripeCustomerID: customerID,
		Status:           models.SubscriptionStatusInactive,
		Plan:             "free",
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(sub).Error; err != nil {
		return nil, err
	}

	// Ensure ID and existing fields are populated after upsert.
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *gormRepository) FindPlanMapping(ctx context.Context, provider, priceID string) (*models.PlanMapping, error) {
	var m models.PlanMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND price_id = ? AND is_active = ?", strings.ToLower(provider), priceID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) ListRecentWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.WebhookEvent
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

package billing

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/offlabel-design/launchbase/app/models"
	"github.com/offlabel-design/launchbase/internal/pkg/entitlements"
)

// resolvePlanForPrice maps a provider price id to an internal plan through
// the plan mapping table. Returns (plan, true) on a hit.
func resolvePlanForPrice(ctx context.Context, repo Repository, priceID string) (string, bool) {
	ref := strings.TrimSpace(priceID)
	if ref == "" {
		return string(entitlements.PlanFree), false
	}

	m, err := repo.FindPlanMapping(ctx, models.BillingProviderStripe, ref)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("billing: plan mapping lookup for price %s failed: %v", ref, err)
		}
		return string(entitlements.PlanFree), false
	}
	return string(entitlements.Normalize(m.InternalPlan)), true
}

// SeedPlanMappings upserts mappings for the Stripe prices configured in the
// environment. Checkout only ever sells these prices, so the table is the
// single source of truth for price -> plan resolution.
func SeedPlanMappings(db *gorm.DB, priceIDs map[string]string) error {
	for priceID, plan := range priceIDs {
		priceID = strings.TrimSpace(priceID)
		if priceID == "" {
			continue
		}
		var m models.PlanMapping
		err := db.Where("provider = ? AND price_id = ?", models.BillingProviderStripe, priceID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = models.PlanMapping{
				Provider:     models.BillingProviderStripe,
				PriceID:      priceID,
				InternalPlan: string(entitlements.Normalize(plan)),
				IsActive:     true,
			}
			if err := db.Create(&m).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		m.InternalPlan = string(entitlements.Normalize(plan))
		m.IsActive = true
		if err := db.Save(&m).Error; err != nil {
			return err
		}
	}
	return nil
}

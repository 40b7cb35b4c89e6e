package models

import "time"

// PlanMapping maps provider price IDs to internal plans. Reconciliation
// resolves the purchased tier through this table instead of hardcoding it.
type PlanMapping struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Provider     string    `gorm:"type:varchar(20);not null;index:ux_plan_mappings_price,unique,priority:1" json:"provider"`
	PriceID      string    `gorm:"type:varchar(191);not null;index:ux_plan_mappings_price,unique,priority:2" json:"price_id"`
	InternalPlan string    `gorm:"type:varchar(50);not null;default:'free'" json:"internal_plan"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

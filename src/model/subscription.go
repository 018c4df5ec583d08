package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanFree    = "Free"
	PlanBasic   = "Basic"
	PlanPremium = "Premium"
	PlanPro     = "Pro"
)

const SubscriptionStatusActive = "active"

// Subscription holds billing plan state. Checkout and payment collection live
// outside this service; rows here are consumed as plain plan state.
type Subscription struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	Plan             string          `gorm:"size:30;not null;default:Free" json:"plan"`
	Status           string          `gorm:"size:30;not null;default:active" json:"status"`
	PriceUSD         decimal.Decimal `gorm:"type:numeric(10,2)" json:"price_usd"`
	CurrentPeriodEnd *time.Time      `json:"current_period_end,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WebhookLimit returns the monthly webhook allowance for a plan.
func WebhookLimit(plan string) int {
	switch plan {
	case PlanPro:
		return 999999999
	case PlanPremium:
		return 5000
	case PlanBasic:
		return 1000
	default:
		return 5
	}
}

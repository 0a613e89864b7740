package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/offertory/pkg/types"
)

type SubscriptionPlan struct {
	ID               string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Code             string                    `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	Name             string                    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	IsDefault        bool                      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	Active           bool                      `gorm:"column:active;not null;default:true" json:"active"`
	Price            decimal.Decimal           `gorm:"column:price;type:numeric(12,2)" json:"price"`
	Currency         string                    `gorm:"column:currency;type:varchar(3)" json:"currency"`
	StripePriceID    *string                   `gorm:"column:stripe_price_id;type:varchar(255);index" json:"stripe_price_id"`
	PaystackPlanCode *string                   `gorm:"column:paystack_plan_code;type:varchar(255);index" json:"paystack_plan_code"`
	Features         []SubscriptionPlanFeature `gorm:"foreignKey:PlanID" json:"features"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plan" }

// PriceRef returns the plan's price identifier at provider.
func (p *SubscriptionPlan) PriceRef(provider types.PaymentProvider) string {
	switch provider {
	case types.PaymentProviderStripe:
		if p.StripePriceID != nil {
			return *p.StripePriceID
		}
	case types.PaymentProviderPaystack:
		if p.PaystackPlanCode != nil {
			return *p.PaystackPlanCode
		}
	}
	return ""
}

type SubscriptionPlanFeature struct {
	ID      string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PlanID  string `gorm:"column:plan_id;type:uuid;not null;uniqueIndex:idx_plan_feature_key,priority:1" json:"plan_id"`
	Key     string `gorm:"column:feature_key;type:varchar(64);not null;uniqueIndex:idx_plan_feature_key,priority:2" json:"key"`
	Enabled bool   `gorm:"column:enabled;not null" json:"enabled"`
	// Limit nil means unlimited.
	Limit     *int64    `gorm:"column:limit_value" json:"limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubscriptionPlanFeature) TableName() string { return "subscription_plan_feature" }

// TenantSubscription is one billing relationship between a church and the
// platform. At most one row per church is in the active status set.
type TenantSubscription struct {
	ID                 string                         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID           string                         `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	PlanID             string                         `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	Plan               *SubscriptionPlan              `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status             types.TenantSubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Provider           types.PaymentProvider          `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	ProviderRef        *string                        `gorm:"column:provider_ref;type:varchar(255);index" json:"provider_ref"`
	ProviderCustomerID *string                        `gorm:"column:provider_customer_id;type:varchar(255)" json:"provider_customer_id"`
	ProviderPriceRef   *string                        `gorm:"column:provider_price_ref;type:varchar(255)" json:"provider_price_ref"`
	CurrentPeriodStart *time.Time                     `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time                     `gorm:"column:current_period_end" json:"current_period_end"`
	CanceledAt         *time.Time                     `gorm:"column:canceled_at" json:"canceled_at"`
	// Metadata is the legacy provider blob, normalized by the backfill job.
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (TenantSubscription) TableName() string { return "tenant_subscription" }

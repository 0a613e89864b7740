package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/offertory/pkg/types"
)

// Church is the tenant. Only the columns billing needs live here; the rest of
// the profile is owned by the church management routers.
type Church struct {
	ID              string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name            string             `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Slug            string             `gorm:"column:slug;type:varchar(128);not null;uniqueIndex" json:"slug"`
	Country         string             `gorm:"column:country;type:varchar(2)" json:"country"`
	Currency        string             `gorm:"column:currency;type:varchar(3)" json:"currency"`
	Status          types.ChurchStatus `gorm:"column:status;type:varchar(32);not null;default:ACTIVE" json:"status"`
	SuspendedReason *string            `gorm:"column:suspended_reason;type:varchar(128)" json:"suspended_reason"`
	SuspendedAt     *time.Time         `gorm:"column:suspended_at" json:"suspended_at"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (Church) TableName() string { return "church" }

type StaffMember struct {
	ID        string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  string          `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	Name      string          `gorm:"column:name;type:varchar(255)" json:"name"`
	Email     string          `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Role      types.StaffRole `gorm:"column:role;type:varchar(32);not null" json:"role"`
	Active    bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (StaffMember) TableName() string { return "staff_member" }

type Member struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  string    `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	FirstName string    `gorm:"column:first_name;type:varchar(128)" json:"first_name"`
	LastName  string    `gorm:"column:last_name;type:varchar(128)" json:"last_name"`
	Email     *string   `gorm:"column:email;type:varchar(255)" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string { return "member" }

type Fund struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID  string    `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Fund) TableName() string { return "fund" }

type Campaign struct {
	ID         string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID   string          `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	FundID     *string         `gorm:"column:fund_id;type:uuid" json:"fund_id"`
	Name       string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	GoalAmount decimal.Decimal `gorm:"column:goal_amount;type:numeric(12,2)" json:"goal_amount"`
	Active     bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Campaign) TableName() string { return "campaign" }

type Pledge struct {
	ID         string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ChurchID   string          `gorm:"column:church_id;type:uuid;not null;index" json:"church_id"`
	CampaignID string          `gorm:"column:campaign_id;type:uuid;not null;index" json:"campaign_id"`
	MemberID   *string         `gorm:"column:member_id;type:uuid" json:"member_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Pledge) TableName() string { return "pledge" }

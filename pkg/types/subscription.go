package types

type TenantSubscriptionStatus string

const (
	TenantSubscriptionStatusTrialing TenantSubscriptionStatus = "TRIALING"
	TenantSubscriptionStatusActive   TenantSubscriptionStatus = "ACTIVE"
	TenantSubscriptionStatusPastDue  TenantSubscriptionStatus = "PAST_DUE"
	TenantSubscriptionStatusPaused   TenantSubscriptionStatus = "PAUSED"
	TenantSubscriptionStatusCanceled TenantSubscriptionStatus = "CANCELED"
	TenantSubscriptionStatusExpired  TenantSubscriptionStatus = "EXPIRED"
)

// ActiveSubscriptionStatuses is the set a tenant may hold at most one of.
var ActiveSubscriptionStatuses = []TenantSubscriptionStatus{
	TenantSubscriptionStatusTrialing,
	TenantSubscriptionStatusActive,
	TenantSubscriptionStatusPastDue,
}

func (s TenantSubscriptionStatus) IsActive() bool {
	for _, a := range ActiveSubscriptionStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type ChurchStatus string

const (
	ChurchStatusActive    ChurchStatus = "ACTIVE"
	ChurchStatusSuspended ChurchStatus = "SUSPENDED"
)

type StaffRole string

const (
	StaffRoleAdmin StaffRole = "ADMIN"
	StaffRoleStaff StaffRole = "STAFF"
)

// Feature keys gated by the plan.
const (
	FeatureOnlineGiving    = "online_giving"
	FeatureRecurringGiving = "recurring_giving"
	FeatureTicketing       = "ticketing"
	FeatureCampaigns       = "campaigns"
	FeatureMembers         = "members"
	FeatureStaff           = "staff"
	FeatureFunds           = "funds"
	FeatureEvents          = "events"
)

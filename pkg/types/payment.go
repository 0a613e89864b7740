package types

import "time"

type PaymentIntentStatus string

const (
	PaymentIntentStatusRequiresAction PaymentIntentStatus = "REQUIRES_ACTION"
	PaymentIntentStatusProcessing     PaymentIntentStatus = "PROCESSING"
	PaymentIntentStatusSucceeded      PaymentIntentStatus = "SUCCEEDED"
	PaymentIntentStatusFailed         PaymentIntentStatus = "FAILED"
)

type PaymentPurpose string

const (
	PaymentPurposeDonation  PaymentPurpose = "DONATION"
	PaymentPurposeRecurring PaymentPurpose = "RECURRING_DONATION"
	PaymentPurposeTicket    PaymentPurpose = "EVENT_TICKET"
)

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "PENDING"
	DonationStatusCompleted DonationStatus = "COMPLETED"
	DonationStatusFailed    DonationStatus = "FAILED"
	DonationStatusRefunded  DonationStatus = "REFUNDED"
)

type TicketOrderStatus string

const (
	TicketOrderStatusPending  TicketOrderStatus = "PENDING"
	TicketOrderStatusPaid     TicketOrderStatus = "PAID"
	TicketOrderStatusCanceled TicketOrderStatus = "CANCELED"
)

type RecurringStatus string

const (
	RecurringStatusPaused   RecurringStatus = "PAUSED"
	RecurringStatusActive   RecurringStatus = "ACTIVE"
	RecurringStatusCanceled RecurringStatus = "CANCELED"
)

type RecurringInterval string

const (
	RecurringIntervalWeekly    RecurringInterval = "WEEKLY"
	RecurringIntervalMonthly   RecurringInterval = "MONTHLY"
	RecurringIntervalQuarterly RecurringInterval = "QUARTERLY"
	RecurringIntervalYearly    RecurringInterval = "YEARLY"
)

func (i RecurringInterval) Valid() bool {
	switch i {
	case RecurringIntervalWeekly, RecurringIntervalMonthly, RecurringIntervalQuarterly, RecurringIntervalYearly:
		return true
	}
	return false
}

// Next returns the charge date one interval after t.
func (i RecurringInterval) Next(t time.Time) time.Time {
	switch i {
	case RecurringIntervalWeekly:
		return t.AddDate(0, 0, 7)
	case RecurringIntervalQuarterly:
		return t.AddDate(0, 3, 0)
	case RecurringIntervalYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

type RSVPStatus string

const (
	RSVPStatusGoing    RSVPStatus = "GOING"
	RSVPStatusMaybe    RSVPStatus = "MAYBE"
	RSVPStatusNotGoing RSVPStatus = "NOT_GOING"
)

type WebhookEventStatus string

const (
	WebhookEventStatusProcessing WebhookEventStatus = "PROCESSING"
	WebhookEventStatusProcessed  WebhookEventStatus = "PROCESSED"
	WebhookEventStatusFailed     WebhookEventStatus = "FAILED"
)

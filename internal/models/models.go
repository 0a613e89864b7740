package models

// All lists every model owned by this service, in migration order.
func All() []any {
	return []any{
		&Church{},
		&StaffMember{},
		&Member{},
		&Fund{},
		&Campaign{},
		&Pledge{},
		&Event{},
		&TicketType{},
		&EventRSVP{},
		&EventTicketOrder{},
		&PaymentIntent{},
		&Donation{},
		&RecurringDonation{},
		&Refund{},
		&Dispute{},
		&SubscriptionPlan{},
		&SubscriptionPlanFeature{},
		&TenantSubscription{},
		&AuditLog{},
		&OutboundMessage{},
		&WebhookEvent{},
	}
}

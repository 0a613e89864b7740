package gateway

import "strconv"

// Correlation carries the local identifiers a provider object was created
// for. It travels through provider metadata and comes back on webhooks.
type Correlation struct {
	PaymentIntentID      string `json:"payment_intent_id,omitempty"`
	ChurchID             string `json:"church_id,omitempty"`
	DonationID           string `json:"donation_id,omitempty"`
	TicketOrderID        string `json:"ticket_order_id,omitempty"`
	RecurringDonationID  string `json:"recurring_donation_id,omitempty"`
	TenantSubscriptionID string `json:"tenant_subscription_id,omitempty"`
	PlanID               string `json:"plan_id,omitempty"`

	// Donor details as last confirmed by the giver. A success webhook writes
	// them back even when the donation is already settled.
	Anonymous  string `json:"is_anonymous,omitempty"`
	DonorName  string `json:"donor_name,omitempty"`
	DonorEmail string `json:"donor_email,omitempty"`
}

const (
	metaPaymentIntentID      = "payment_intent_id"
	metaChurchID             = "church_id"
	metaDonationID           = "donation_id"
	metaTicketOrderID        = "ticket_order_id"
	metaRecurringDonationID  = "recurring_donation_id"
	metaTenantSubscriptionID = "tenant_subscription_id"
	metaPlanID               = "plan_id"
	metaAnonymous            = "is_anonymous"
	metaDonorName            = "donor_name"
	metaDonorEmail           = "donor_email"
)

func (c *Correlation) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{metaPaymentIntentID, &c.PaymentIntentID},
		{metaChurchID, &c.ChurchID},
		{metaDonationID, &c.DonationID},
		{metaTicketOrderID, &c.TicketOrderID},
		{metaRecurringDonationID, &c.RecurringDonationID},
		{metaTenantSubscriptionID, &c.TenantSubscriptionID},
		{metaPlanID, &c.PlanID},
		{metaAnonymous, &c.Anonymous},
		{metaDonorName, &c.DonorName},
		{metaDonorEmail, &c.DonorEmail},
	}
}

// Metadata encodes c as provider metadata, omitting empty ids.
func (c Correlation) Metadata() map[string]string {
	out := map[string]string{}
	for _, f := range (&c).fields() {
		if *f.val != "" {
			out[f.key] = *f.val
		}
	}
	return out
}

func CorrelationFromMetadata(m map[string]string) Correlation {
	var c Correlation
	if len(m) == 0 {
		return c
	}
	c.PaymentIntentID = m[metaPaymentIntentID]
	c.ChurchID = m[metaChurchID]
	c.DonationID = m[metaDonationID]
	c.TicketOrderID = m[metaTicketOrderID]
	c.RecurringDonationID = m[metaRecurringDonationID]
	c.TenantSubscriptionID = m[metaTenantSubscriptionID]
	c.PlanID = m[metaPlanID]
	c.Anonymous = m[metaAnonymous]
	c.DonorName = m[metaDonorName]
	c.DonorEmail = m[metaDonorEmail]
	return c
}

// Merge fills the blank ids of c from o.
func (c Correlation) Merge(o Correlation) Correlation {
	of := (&o).fields()
	for i, f := range (&c).fields() {
		if *f.val == "" {
			*f.val = *of[i].val
		}
	}
	return c
}

func (c Correlation) IsZero() bool { return c == Correlation{} }

func AnonymityFlag(anonymous bool) string { return strconv.FormatBool(anonymous) }

// DonorFields returns the donation columns the donor details set. Blank or
// unparsable values are left out.
func (c Correlation) DonorFields() map[string]any {
	out := map[string]any{}
	if b, err := strconv.ParseBool(c.Anonymous); err == nil {
		out["is_anonymous"] = b
	}
	if c.DonorName != "" {
		out["donor_name"] = c.DonorName
	}
	if c.DonorEmail != "" {
		out["donor_email"] = c.DonorEmail
	}
	return out
}

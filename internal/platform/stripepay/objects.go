package stripepay

import (
	"bytes"
	"encoding/json"
	"time"
)

// expandable decodes a Stripe field that is either an id string or the
// expanded object.
type expandable struct {
	ID string
}

func (e *expandable) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     expandable        `json:"payment_intent"`
	Subscription      expandable        `json:"subscription"`
	Customer          expandable        `json:"customer"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	Created           int64             `json:"created"`
}

type paymentIntentObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	Customer         expandable        `json:"customer"`
	LatestCharge     expandable        `json:"latest_charge"`
	Metadata         map[string]string `json:"metadata"`
	Created          int64             `json:"created"`
	LastPaymentError *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"last_payment_error"`
}

// invoiceObject reads both the pre-2025 shape (subscription and
// payment_intent at top level) and the parent/payments shape.
type invoiceObject struct {
	ID                  string            `json:"id"`
	Customer            expandable        `json:"customer"`
	Currency            string            `json:"currency"`
	AmountPaid          int64             `json:"amount_paid"`
	AmountDue           int64             `json:"amount_due"`
	Subscription        expandable        `json:"subscription"`
	PaymentIntent       expandable        `json:"payment_intent"`
	Metadata            map[string]string `json:"metadata"`
	Created             int64             `json:"created"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription expandable        `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Payments *struct {
		Data []struct {
			Payment struct {
				PaymentIntent expandable `json:"payment_intent"`
				Charge        expandable `json:"charge"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
			Price *struct {
				ID string `json:"id"`
			} `json:"price"`
			Pricing *struct {
				PriceDetails *struct {
					Price string `json:"price"`
				} `json:"price_details"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"lines"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

func (in *invoiceObject) subscriptionID() string {
	if in.Parent != nil && in.Parent.SubscriptionDetails != nil && in.Parent.SubscriptionDetails.Subscription.ID != "" {
		return in.Parent.SubscriptionDetails.Subscription.ID
	}
	return in.Subscription.ID
}

func (in *invoiceObject) subscriptionMetadata() map[string]string {
	if in.Parent != nil && in.Parent.SubscriptionDetails != nil && len(in.Parent.SubscriptionDetails.Metadata) > 0 {
		return in.Parent.SubscriptionDetails.Metadata
	}
	if in.SubscriptionDetails != nil {
		return in.SubscriptionDetails.Metadata
	}
	return nil
}

func (in *invoiceObject) paymentIntentID() string {
	if in.PaymentIntent.ID != "" {
		return in.PaymentIntent.ID
	}
	if in.Payments != nil {
		for _, p := range in.Payments.Data {
			if p.Payment.PaymentIntent.ID != "" {
				return p.Payment.PaymentIntent.ID
			}
			if p.Payment.Charge.ID != "" {
				return p.Payment.Charge.ID
			}
		}
	}
	return ""
}

func (in *invoiceObject) period() (start, end *time.Time) {
	if len(in.Lines.Data) == 0 {
		return nil, nil
	}
	p := in.Lines.Data[0].Period
	return unixPtr(p.Start), unixPtr(p.End)
}

func (in *invoiceObject) priceID() string {
	for _, l := range in.Lines.Data {
		if l.Price != nil && l.Price.ID != "" {
			return l.Price.ID
		}
		if l.Pricing != nil && l.Pricing.PriceDetails != nil && l.Pricing.PriceDetails.Price != "" {
			return l.Pricing.PriceDetails.Price
		}
	}
	return ""
}

// subscriptionObject reads period bounds from the subscription itself or,
// on newer API versions, from its first item.
type subscriptionObject struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Customer           expandable        `json:"customer"`
	Metadata           map[string]string `json:"metadata"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	EndedAt            int64             `json:"ended_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (s *subscriptionObject) period() (start, end *time.Time) {
	st, en := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if (st == 0 || en == 0) && len(s.Items.Data) > 0 {
		st, en = s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd
	}
	return unixPtr(st), unixPtr(en)
}

func (s *subscriptionObject) priceID() string {
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].Price.ID
	}
	return ""
}

type refundObject struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason"`
	PaymentIntent expandable        `json:"payment_intent"`
	Charge        expandable        `json:"charge"`
	Metadata      map[string]string `json:"metadata"`
}

type chargeObject struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentIntent expandable        `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
	Refunds       *struct {
		Data []refundObject `json:"data"`
	} `json:"refunds"`
}

type disputeObject struct {
	ID              string            `json:"id"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	Reason          string            `json:"reason"`
	Charge          expandable        `json:"charge"`
	PaymentIntent   expandable        `json:"payment_intent"`
	Metadata        map[string]string `json:"metadata"`
	EvidenceDetails struct {
		DueBy int64 `json:"due_by"`
	} `json:"evidence_details"`
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func unixOr(sec int64, fallback time.Time) time.Time {
	if sec <= 0 {
		return fallback
	}
	return time.Unix(sec, 0).UTC()
}

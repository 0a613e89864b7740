package paystack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// minorAmount accepts Paystack amounts and ids sent as numbers or strings.
type minorAmount int64

func (m *minorAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", s, err)
		}
		*m = minorAmount(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		i = int64(f)
	}
	*m = minorAmount(i)
	return nil
}

func (m minorAmount) String() string {
	if m == 0 {
		return ""
	}
	return strconv.FormatInt(int64(m), 10)
}

// flexValues decodes metadata that Paystack echoes back either as an object
// or as a JSON-encoded string. Non-string values are stringified.
type flexValues map[string]string

func (f *flexValues) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make(flexValues, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
		case float64:
			out[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(tv)
		}
	}
	*f = out
	return nil
}

// planRef is a plan given as an object, a bare code or an empty object.
type planRef struct {
	PlanCode string
	Interval string
}

func (p *planRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &p.PlanCode)
	}
	var obj struct {
		PlanCode string `json:"plan_code"`
		Interval string `json:"interval"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil
	}
	p.PlanCode, p.Interval = obj.PlanCode, obj.Interval
	return nil
}

type customer struct {
	CustomerCode string `json:"customer_code"`
	Email        string `json:"email"`
}

type transactionData struct {
	ID              minorAmount `json:"id"`
	Reference       string      `json:"reference"`
	Status          string      `json:"status"`
	Amount          minorAmount `json:"amount"`
	Currency        string      `json:"currency"`
	PaidAt          string      `json:"paid_at"`
	PaidAtAlt       string      `json:"paidAt"`
	GatewayResponse string      `json:"gateway_response"`
	Message         string      `json:"message"`
	Metadata        flexValues  `json:"metadata"`
	Customer        customer    `json:"customer"`
	Plan            planRef     `json:"plan"`
}

type subscriptionData struct {
	SubscriptionCode string      `json:"subscription_code"`
	Status           string      `json:"status"`
	Amount           minorAmount `json:"amount"`
	NextPaymentDate  string      `json:"next_payment_date"`
	CreatedAt        string      `json:"createdAt"`
	CancelledAt      string      `json:"cancelledAt"`
	Plan             planRef     `json:"plan"`
	Customer         customer    `json:"customer"`
	Metadata         flexValues  `json:"metadata"`
}

type invoiceData struct {
	InvoiceCode  string           `json:"invoice_code"`
	Status       string           `json:"status"`
	Paid         bool             `json:"paid"`
	PaidAt       string           `json:"paid_at"`
	Amount       minorAmount      `json:"amount"`
	Currency     string           `json:"currency"`
	PeriodStart  string           `json:"period_start"`
	PeriodEnd    string           `json:"period_end"`
	Description  string           `json:"description"`
	Subscription subscriptionData `json:"subscription"`
	Customer     customer         `json:"customer"`
	Transaction  transactionData  `json:"transaction"`
}

type refundData struct {
	ID                   minorAmount     `json:"id"`
	Status               string          `json:"status"`
	RefundReference      string          `json:"refund_reference"`
	TransactionReference string          `json:"transaction_reference"`
	Amount               minorAmount     `json:"amount"`
	Currency             string          `json:"currency"`
	MerchantNote         string          `json:"merchant_note"`
	Transaction          json.RawMessage `json:"transaction"`
}

// key is the stable refund identifier shared by the refund API response
// and refund webhooks.
func (r *refundData) key() string {
	if s := r.ID.String(); s != "" {
		return s
	}
	return r.RefundReference
}

// transactionReference reads the transaction the refund belongs to, which
// arrives as a reference, an object, or a numeric id.
func (r *refundData) transactionReference() string {
	if r.TransactionReference != "" {
		return r.TransactionReference
	}
	var tx transactionData
	if len(r.Transaction) > 0 && json.Unmarshal(r.Transaction, &tx) == nil {
		return tx.Reference
	}
	return ""
}

type disputeData struct {
	ID           minorAmount     `json:"id"`
	Status       string          `json:"status"`
	Category     string          `json:"category"`
	Resolution   string          `json:"resolution"`
	RefundAmount minorAmount     `json:"refund_amount"`
	Currency     string          `json:"currency"`
	DueAt        string          `json:"dueAt"`
	DueAtAlt     string          `json:"due_at"`
	Transaction  transactionData `json:"transaction"`
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func timeOr(s string, fallback time.Time) time.Time {
	if t := parseTime(s); t != nil {
		return *t
	}
	return fallback
}

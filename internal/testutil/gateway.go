package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

// FakeGateway records calls and returns canned sessions. Set the Err fields to
// make the matching call fail, and Delivery to drive ParseWebhook.
type FakeGateway struct {
	Name types.PaymentProvider

	CheckoutErr  error
	RefundErr    error
	RefundStatus string
	Delivery     *gateway.Delivery
	ParseErr     error
	Snapshot     *gateway.SubscriptionSnapshot
	Resolved     map[string]string

	mu        sync.Mutex
	checkouts []*gateway.CheckoutRequest
	recurring []*gateway.RecurringCheckoutRequest
	refunds   []*gateway.RefundRequest
	fetched   []string
}

func NewFakeGateway(provider types.PaymentProvider) *FakeGateway {
	return &FakeGateway{Name: provider, RefundStatus: "pending"}
}

func (f *FakeGateway) Provider() types.PaymentProvider { return f.Name }

func (f *FakeGateway) CreateCheckout(_ context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	if f.CheckoutErr != nil {
		return nil, apperr.Gateway(string(f.Name), f.CheckoutErr)
	}
	ref := "cs_" + req.Reference
	return &gateway.CheckoutSession{ProviderRef: ref, CheckoutURL: "https://pay.test/" + ref}, nil
}

func (f *FakeGateway) CreateRecurringCheckout(_ context.Context, req *gateway.RecurringCheckoutRequest) (*gateway.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recurring = append(f.recurring, req)
	if f.CheckoutErr != nil {
		return nil, apperr.Gateway(string(f.Name), f.CheckoutErr)
	}
	ref := "sub_cs_" + req.Reference
	plan := req.PriceRef
	if plan == "" {
		plan = "PLN_" + req.Reference
	}
	return &gateway.CheckoutSession{ProviderRef: ref, CheckoutURL: "https://pay.test/" + ref, ProviderPlanRef: plan}, nil
}

func (f *FakeGateway) CreateRefund(_ context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)
	if f.RefundErr != nil {
		return nil, apperr.Gateway(string(f.Name), f.RefundErr)
	}
	return &gateway.RefundResult{
		ProviderRef: tool.PrefixedRef("re"),
		Status:      f.RefundStatus,
		Amount:      req.Amount,
		Currency:    req.Currency,
	}, nil
}

func (f *FakeGateway) ResolvePaymentReference(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Resolved[ref]; ok {
		return v, nil
	}
	return ref, nil
}

func (f *FakeGateway) FetchSubscription(_ context.Context, ref string) (*gateway.SubscriptionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref)
	if f.Snapshot == nil {
		return nil, apperr.NotFound("subscription", ref)
	}
	snap := *f.Snapshot
	snap.ProviderRef = ref
	return &snap, nil
}

func (f *FakeGateway) ParseWebhook(_ context.Context, _ []byte, _ http.Header) (*gateway.Delivery, error) {
	if f.ParseErr != nil {
		return nil, f.ParseErr
	}
	if f.Delivery == nil {
		return &gateway.Delivery{Provider: f.Name, ExternalEventID: "evt_" + tool.GenerateUUIDV7(), EventType: "noop"}, nil
	}
	d := *f.Delivery
	return &d, nil
}

func (f *FakeGateway) Checkouts() []*gateway.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gateway.CheckoutRequest(nil), f.checkouts...)
}

func (f *FakeGateway) RecurringCheckouts() []*gateway.RecurringCheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gateway.RecurringCheckoutRequest(nil), f.recurring...)
}

func (f *FakeGateway) Refunds() []*gateway.RefundRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gateway.RefundRequest(nil), f.refunds...)
}

func (f *FakeGateway) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// Registry registers gws for both giving and platform scopes.
func Registry(gws ...gateway.Gateway) *gateway.Registry {
	r := gateway.NewRegistry()
	for _, g := range gws {
		r.Register(types.GatewayScopeGiving, g)
		r.Register(types.GatewayScopePlatform, g)
	}
	return r
}

// Dec parses s or panics; for literals in tests.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

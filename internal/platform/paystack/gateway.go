package paystack

import (
	"context"
	"fmt"
	"time"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/types"
)

type Options struct {
	// SecretKey authenticates API calls and signs webhooks.
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

var errEmailRequired = apperr.Validation("paystack checkout requires a customer email")

type Gateway struct {
	client *Client
	opts   Options
}

var _ gateway.Gateway = (*Gateway)(nil)

func NewGateway(client *Client, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Gateway{client: client, opts: opts}
}

func (g *Gateway) Provider() types.PaymentProvider { return types.PaymentProviderPaystack }

func (g *Gateway) fail(err error) error {
	return apperr.Gateway(string(types.PaymentProviderPaystack), err)
}

func (g *Gateway) initialize(ctx context.Context, req *gateway.CheckoutRequest, plan string) (*initializeResponse, error) {
	callback := req.SuccessURL
	if callback == "" {
		callback = g.opts.CallbackURL
	}
	return g.client.InitializeTransaction(ctx, &initializeRequest{
		Email:       req.CustomerEmail,
		Amount:      money.ToMinorUnits(req.Amount, req.Currency),
		Currency:    money.Normalize(req.Currency),
		Reference:   req.Reference,
		CallbackURL: callback,
		Plan:        plan,
		Metadata:    req.Correlation.Metadata(),
	})
}

func (g *Gateway) CreateCheckout(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if req.CustomerEmail == "" {
		return nil, errEmailRequired
	}
	res, err := g.initialize(ctx, req, "")
	if err != nil {
		return nil, g.fail(err)
	}
	ref := res.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &gateway.CheckoutSession{ProviderRef: ref, CheckoutURL: res.AuthorizationURL}, nil
}

func planInterval(i types.RecurringInterval) string {
	switch i {
	case types.RecurringIntervalWeekly:
		return "weekly"
	case types.RecurringIntervalQuarterly:
		return "quarterly"
	case types.RecurringIntervalYearly:
		return "annually"
	}
	return "monthly"
}

// CreateRecurringCheckout creates a plan for the gift unless one is given,
// then starts the first charge on it. Paystack creates the subscription
// once that charge succeeds.
func (g *Gateway) CreateRecurringCheckout(ctx context.Context, req *gateway.RecurringCheckoutRequest) (*gateway.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if req.CustomerEmail == "" {
		return nil, errEmailRequired
	}
	plan := req.PriceRef
	if plan == "" {
		name := req.Description
		if name == "" {
			name = "Recurring gift " + req.Reference
		}
		code, err := g.client.CreatePlan(ctx, &createPlanRequest{
			Name:     name,
			Amount:   money.ToMinorUnits(req.Amount, req.Currency),
			Interval: planInterval(req.Interval),
			Currency: money.Normalize(req.Currency),
		})
		if err != nil {
			return nil, g.fail(err)
		}
		plan = code
	}

	res, err := g.initialize(ctx, &req.CheckoutRequest, plan)
	if err != nil {
		return nil, g.fail(err)
	}
	ref := res.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &gateway.CheckoutSession{ProviderRef: ref, CheckoutURL: res.AuthorizationURL, ProviderPlanRef: plan}, nil
}

func (g *Gateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	body := &refundRequest{
		Transaction:  req.PaymentRef,
		Currency:     money.Normalize(req.Currency),
		MerchantNote: req.Reason,
	}
	if req.Amount.IsPositive() {
		body.Amount = money.ToMinorUnits(req.Amount, req.Currency)
	}
	res, err := g.client.CreateRefund(ctx, body)
	if err != nil {
		return nil, g.fail(err)
	}
	currency := money.Normalize(res.Currency)
	if currency == "" {
		currency = money.Normalize(req.Currency)
	}
	amount := money.FromMinorUnits(int64(res.Amount), currency)
	if res.Amount == 0 {
		amount = req.Amount
	}
	ref := res.ID.String()
	if ref == "" {
		return nil, g.fail(fmt.Errorf("create refund: missing refund id in response"))
	}
	return &gateway.RefundResult{ProviderRef: ref, Status: res.Status, Amount: amount, Currency: currency}, nil
}

// ResolvePaymentReference returns ref unchanged: the transaction reference
// is what refunds and disputes use.
func (g *Gateway) ResolvePaymentReference(_ context.Context, ref string) (string, error) {
	return ref, nil
}

func (g *Gateway) FetchSubscription(ctx context.Context, ref string) (*gateway.SubscriptionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	sub, err := g.client.FetchSubscription(ctx, ref)
	if err != nil {
		return nil, g.fail(err)
	}
	code := sub.SubscriptionCode
	if code == "" {
		code = ref
	}
	return &gateway.SubscriptionSnapshot{
		ProviderRef:        code,
		Status:             sub.Status,
		CustomerID:         sub.Customer.CustomerCode,
		PriceRef:           sub.Plan.PlanCode,
		CurrentPeriodStart: parseTime(sub.CreatedAt),
		CurrentPeriodEnd:   parseTime(sub.NextPaymentDate),
		Correlation:        gateway.CorrelationFromMetadata(sub.Metadata),
	}, nil
}

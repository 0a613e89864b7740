package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/money"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
	"github.com/fatflowers/offertory/pkg/validate"
)

type TicketRequest struct {
	ChurchID     string                `json:"church_id" validate:"required_without=ChurchSlug"`
	ChurchSlug   string                `json:"church_slug"`
	EventID      string                `json:"event_id" validate:"required"`
	TicketTypeID string                `json:"ticket_type_id" validate:"required"`
	Quantity     int                   `json:"quantity" validate:"gte=1,lte=50"`
	Provider     types.PaymentProvider `json:"provider" validate:"required,oneof=STRIPE PAYSTACK MANUAL"`
	Payer        Payer                 `json:"payer"`
	SuccessURL   string                `json:"success_url" validate:"omitempty,url"`
	CancelURL    string                `json:"cancel_url" validate:"omitempty,url"`
}

// errSoldOut is wrapped with the seat counts when capacity is short.
var errSoldOut = errors.New("not enough seats left")

// CreateTicketCheckout reserves seats with a pending order and starts a
// checkout for them. Seats are counted under a lock on the event row, so
// buyers of the same event queue behind each other.
func (s *Service) CreateTicketCheckout(ctx context.Context, req *TicketRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	gw, err := s.gatewayFor(req.Provider)
	if err != nil {
		return nil, err
	}
	church, err := s.loadChurch(ctx, s.db, req.ChurchID, req.ChurchSlug)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithChurch(ctx, church.ID)
	if err := s.requireFeatures(ctx, church.ID, types.FeatureTicketing); err != nil {
		return nil, err
	}
	if err := checkOwned(ctx, s.db, &models.Member{}, "member", req.Payer.MemberID, church.ID); err != nil {
		return nil, err
	}

	var event models.Event
	if err := s.db.WithContext(ctx).Where("id = ? AND church_id = ?", req.EventID, church.ID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event", req.EventID)
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	var tt models.TicketType
	if err := s.db.WithContext(ctx).Where("id = ? AND event_id = ?", req.TicketTypeID, event.ID).First(&tt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("ticket type", req.TicketTypeID)
		}
		return nil, fmt.Errorf("load ticket type: %w", err)
	}

	currency := money.Normalize(tt.Currency)
	amount := tt.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	if req.Payer.Country == "" {
		req.Payer.Country = church.Country
	}
	if req.Provider == types.PaymentProviderPaystack && req.Payer.Email == "" {
		return nil, apperr.Validation("payer email is required for %s", req.Provider)
	}
	if err := s.checkAmount(req.Provider, amount, currency, req.Payer.Country); err != nil {
		return nil, err
	}

	order := &models.EventTicketOrder{
		ID:           tool.GenerateUUIDV7(),
		ChurchID:     church.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		MemberID:     lo.EmptyableToPtr(req.Payer.MemberID),
		BuyerName:    req.Payer.Name,
		BuyerEmail:   req.Payer.Email,
		Quantity:     req.Quantity,
		Amount:       amount,
		Currency:     currency,
		Status:       types.TicketOrderStatusPending,
		Provider:     req.Provider,
	}
	intent := newIntent(church.ID, types.PaymentPurposeTicket, req.Provider, amount, currency)
	intent.TicketOrderID = &order.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := eventForUpdate(tx.WithContext(ctx), event.ID).First(&event).Error; err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		if err := checkCapacity(ctx, tx, tt.Capacity, "ticket_type_id = ?", tt.ID, req.Quantity); err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, event.Capacity, "event_id = ?", event.ID, req.Quantity); err != nil {
			return err
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create ticket order: %w", err)
		}
		if err := tx.Create(intent).Error; err != nil {
			return fmt.Errorf("create payment intent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.launch(ctx, intent, func(ctx context.Context) (*gateway.CheckoutSession, error) {
		return gw.CreateCheckout(ctx, &gateway.CheckoutRequest{
			Reference:     intent.ID,
			Amount:        amount,
			Currency:      currency,
			Quantity:      req.Quantity,
			Description:   fmt.Sprintf("%s: %s", event.Title, tt.Name),
			CustomerEmail: req.Payer.Email,
			CustomerName:  req.Payer.Name,
			SuccessURL:    req.SuccessURL,
			CancelURL:     req.CancelURL,
			Correlation:   gateway.Correlation{PaymentIntentID: intent.ID, ChurchID: church.ID, TicketOrderID: order.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	return result(intent, sess), nil
}

// eventForUpdate covers every ticket type of the event, since they share its
// seats.
func eventForUpdate(db *gorm.DB, eventID string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", eventID)
}

// checkCapacity counts seats held by pending and paid orders matching where.
// A nil capacity is unlimited.
func checkCapacity(ctx context.Context, tx *gorm.DB, capacity *int, where string, id string, want int) error {
	if capacity == nil {
		return nil
	}
	var held []int
	if err := tx.WithContext(ctx).Model(&models.EventTicketOrder{}).
		Where(where, id).
		Where("status IN ?", []types.TicketOrderStatus{types.TicketOrderStatusPending, types.TicketOrderStatusPaid}).
		Pluck("quantity", &held).Error; err != nil {
		return fmt.Errorf("count held seats: %w", err)
	}
	taken := lo.Sum(held)
	if taken+want > *capacity {
		return fmt.Errorf("%w: %w (%d of %d taken, %d requested)", apperr.ErrValidation, errSoldOut, taken, *capacity, want)
	}
	return nil
}

// Package ledger is the webhook idempotency ledger. The unique
// (provider, external_event_id) insert is the per-event mutex: of concurrent
// deliveries of one event exactly one proceeds.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

type BeginRequest struct {
	Provider        types.PaymentProvider
	Scope           types.GatewayScope
	ExternalEventID string
	EventType       string
	Payload         []byte
}

// Begin is the outcome of BeginProcessing. When Duplicate is true the caller
// must skip all business logic; Existing carries the stored row.
type Begin struct {
	Duplicate bool
	Resumed   bool
	RecordID  string
	Existing  *models.WebhookEvent
}

func (s *Service) BeginProcessing(ctx context.Context, req *BeginRequest) (*Begin, error) {
	if req.ExternalEventID == "" {
		return nil, errors.New("ledger: empty external event id")
	}
	now := s.now().UTC()
	hash := tool.SHA256Hex(req.Payload)
	row := &models.WebhookEvent{
		ID:              tool.GenerateUUIDV7(),
		Provider:        req.Provider,
		ExternalEventID: req.ExternalEventID,
		Scope:           req.Scope,
		EventType:       req.EventType,
		PayloadHash:     hash,
		Status:          types.WebhookEventStatusProcessing,
		Attempts:        1,
		TraceID:         logctx.TraceID(ctx),
		ReceivedAt:      now,
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_event_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return nil, fmt.Errorf("insert webhook event: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return &Begin{RecordID: row.ID}, nil
	}

	var existing models.WebhookEvent
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", req.Provider, req.ExternalEventID).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("load webhook event: %w", err)
	}

	if existing.Status == types.WebhookEventStatusFailed {
		upd := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
			Where("id = ? AND status = ?", existing.ID, types.WebhookEventStatusFailed).
			Updates(map[string]any{
				"status":       types.WebhookEventStatusProcessing,
				"error":        nil,
				"payload_hash": hash,
				"event_type":   req.EventType,
				"attempts":     gorm.Expr("attempts + 1"),
				"trace_id":     logctx.TraceID(ctx),
				"received_at":  now,
			})
		if upd.Error != nil {
			return nil, fmt.Errorf("resume webhook event: %w", upd.Error)
		}
		if upd.RowsAffected == 1 {
			logctx.FromCtx(ctx, s.log).Infow("webhook_event_resumed",
				"provider", req.Provider, "external_event_id", req.ExternalEventID, "attempt", existing.Attempts+1)
			return &Begin{RecordID: existing.ID, Resumed: true}, nil
		}
		// another delivery resumed it first
		if err := s.db.WithContext(ctx).First(&existing, "id = ?", existing.ID).Error; err != nil {
			return nil, fmt.Errorf("reload webhook event: %w", err)
		}
	}

	return &Begin{Duplicate: true, RecordID: existing.ID, Existing: &existing}, nil
}

func encodeResult(result any) (datatypes.JSON, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return datatypes.JSON(b), nil
}

func (s *Service) MarkProcessed(ctx context.Context, recordID string, result any) error {
	payload, err := encodeResult(result)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return s.finalize(ctx, recordID, map[string]any{
		"status":       types.WebhookEventStatusProcessed,
		"result":       payload,
		"error":        nil,
		"processed_at": now,
	})
}

func (s *Service) MarkFailed(ctx context.Context, recordID string, cause error, result any) error {
	payload, err := encodeResult(result)
	if err != nil {
		return err
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finalize(ctx, recordID, map[string]any{
		"status":       types.WebhookEventStatusFailed,
		"result":       payload,
		"error":        msg,
		"processed_at": nil,
	})
}

func (s *Service) finalize(ctx context.Context, recordID string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", recordID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("finalize webhook event %s: %w", recordID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finalize webhook event %s: %w", recordID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, recordID string) (*models.WebhookEvent, error) {
	var row models.WebhookEvent
	if err := s.db.WithContext(ctx).First(&row, "id = ?", recordID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

var listableFields = []string{
	"provider", "scope", "status", "event_type", "external_event_id", "received_at", "processed_at", "created_at",
}

type ListRequest struct {
	Filters types.Filters `json:"filters"`
	From    int           `json:"from"`
	Size    int           `json:"size"`
}

type ListResponse struct {
	Total int64                  `json:"total"`
	Items []*models.WebhookEvent `json:"items"`
}

// List pages through ledger rows, newest first. Filters on columns outside
// the listable set are ignored.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	size := req.Size
	if size <= 0 || size > 200 {
		size = 20
	}
	from := max(req.From, 0)

	q := s.db.WithContext(ctx).Model(&models.WebhookEvent{})
	if fs := req.Filters.AllowFields(listableFields...); len(fs) > 0 {
		q = q.Where(clause.Where{Exprs: []clause.Expression{fs}})
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count webhook events: %w", err)
	}
	var items []*models.WebhookEvent
	if err := q.Order("received_at DESC").Offset(from).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	return &ListResponse{Total: total, Items: items}, nil
}

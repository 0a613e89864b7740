// Package notify writes to the audit log and the outbound message queue.
// Every helper takes the caller's *gorm.DB so writes join the caller's
// transaction.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/tool"
	"github.com/fatflowers/offertory/pkg/types"
)

const (
	ChannelEmail = "email"

	TemplateDonationReceipt = "donation_receipt"
	TemplateDunning         = "billing_past_due"
	TemplateDisputeAlert    = "dispute_alert"

	// MetadataDedupeKey mirrors OutboundMessage.DedupeKey inside metadata for
	// the messaging worker.
	MetadataDedupeKey = "dedupe_key"
)

// Actor ids for automated writes.
const (
	ActorWebhook = "system:webhook"
	ActorJobs    = "system:billing-jobs"
)

type Audit struct {
	ChurchID   string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
}

func toJSON(v map[string]any) (datatypes.JSON, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func WriteAudit(ctx context.Context, db *gorm.DB, a Audit) error {
	details, err := toJSON(a.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	row := &models.AuditLog{
		ID:         tool.GenerateUUIDV7(),
		ChurchID:   lo.EmptyableToPtr(a.ChurchID),
		ActorID:    lo.EmptyableToPtr(a.ActorID),
		Action:     a.Action,
		TargetType: a.TargetType,
		TargetID:   a.TargetID,
		Details:    details,
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("write audit %s: %w", a.Action, err)
	}
	return nil
}

// HasAudit reports whether an audit entry for (targetID, action) exists.
func HasAudit(ctx context.Context, db *gorm.DB, targetID, action string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("target_id = ? AND action = ?", targetID, action).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup audit %s: %w", action, err)
	}
	return n > 0, nil
}

// AuditedSince reports whether an audit entry for (targetID, action) was
// written at or after since.
func AuditedSince(ctx context.Context, db *gorm.DB, targetID, action string, since time.Time) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("target_id = ? AND action = ? AND created_at >= ?", targetID, action, since).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup audit %s: %w", action, err)
	}
	return n > 0, nil
}

type Message struct {
	ChurchID  string
	Recipient string
	Template  string
	Subject   string
	DedupeKey string
	Metadata  map[string]any
}

func Enqueue(ctx context.Context, db *gorm.DB, m Message) error {
	md := lo.Assign(map[string]any{}, m.Metadata)
	if m.DedupeKey != "" {
		md[MetadataDedupeKey] = m.DedupeKey
	}
	metadata, err := toJSON(md)
	if err != nil {
		return fmt.Errorf("encode message metadata: %w", err)
	}
	row := &models.OutboundMessage{
		ID:        tool.GenerateUUIDV7(),
		ChurchID:  lo.EmptyableToPtr(m.ChurchID),
		Channel:   ChannelEmail,
		Recipient: m.Recipient,
		Template:  m.Template,
		Subject:   m.Subject,
		DedupeKey: lo.EmptyableToPtr(m.DedupeKey),
		Metadata:  metadata,
		Status:    models.OutboundMessageStatusQueued,
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("enqueue %s message: %w", m.Template, err)
	}
	return nil
}

// QueuedSince reports whether a message with dedupeKey was queued at or after
// since.
func QueuedSince(ctx context.Context, db *gorm.DB, dedupeKey string, since time.Time) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.OutboundMessage{}).
		Where("dedupe_key = ? AND created_at >= ?", dedupeKey, since).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup message %s: %w", dedupeKey, err)
	}
	return n > 0, nil
}

// AdminRecipients lists the active admin staff of a church.
func AdminRecipients(ctx context.Context, db *gorm.DB, churchID string) ([]models.StaffMember, error) {
	var staff []models.StaffMember
	if err := db.WithContext(ctx).
		Where("church_id = ? AND role = ? AND active = ?", churchID, types.StaffRoleAdmin, true).
		Order("email").
		Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("list admin staff: %w", err)
	}
	return lo.UniqBy(staff, func(s models.StaffMember) string { return s.Email }), nil
}

// QueueReceipt queues the donor's receipt for a completed donation. Donations
// without a donor email get no receipt.
func QueueReceipt(ctx context.Context, db *gorm.DB, d *models.Donation) (bool, error) {
	if d.DonorEmail == "" {
		return false, nil
	}
	err := Enqueue(ctx, db, Message{
		ChurchID:  d.ChurchID,
		Recipient: d.DonorEmail,
		Template:  TemplateDonationReceipt,
		Subject:   "Thank you for your gift",
		DedupeKey: "receipt:" + d.ID,
		Metadata: map[string]any{
			"donation_id": d.ID,
			"amount":      d.Amount.StringFixed(2),
			"currency":    d.Currency,
			"donor_name":  d.DonorName,
		},
	})
	return err == nil, err
}

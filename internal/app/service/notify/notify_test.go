package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/internal/testutil"
	"github.com/fatflowers/offertory/pkg/types"
)

func TestAuditRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	ok, err := HasAudit(ctx, db, "dp_1", "dispute.alert.one_day")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteAudit(ctx, db, Audit{
		ChurchID: "c1", ActorID: ActorJobs, Action: "dispute.alert.one_day",
		TargetType: "dispute", TargetID: "dp_1", Details: map[string]any{"stage": "one_day"},
	}))
	ok, err = HasAudit(ctx, db, "dp_1", "dispute.alert.one_day")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasAudit(ctx, db, "dp_1", "dispute.alert.overdue")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AuditedSince(ctx, db, "dp_1", "dispute.alert.one_day", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = AuditedSince(ctx, db, "dp_1", "dispute.alert.one_day", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnqueue_MirrorsDedupeKeyInMetadata(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, Enqueue(ctx, db, Message{
		ChurchID: "c1", Recipient: "admin@example.com", Template: TemplateDunning,
		DedupeKey: "dunning:s1:admin@example.com", Metadata: map[string]any{"subscription_id": "s1"},
	}))

	var row models.OutboundMessage
	require.NoError(t, db.First(&row).Error)
	require.NotNil(t, row.DedupeKey)
	assert.Equal(t, "dunning:s1:admin@example.com", *row.DedupeKey)
	assert.Equal(t, models.OutboundMessageStatusQueued, row.Status)

	var md map[string]any
	require.NoError(t, json.Unmarshal(row.Metadata, &md))
	assert.Equal(t, "dunning:s1:admin@example.com", md[MetadataDedupeKey])
	assert.Equal(t, "s1", md["subscription_id"])

	recent, err := QueuedSince(ctx, db, "dunning:s1:admin@example.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, recent)

	stale, err := QueuedSince(ctx, db, "dunning:s1:admin@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestSinceLookups_IgnoreRowsBeforeWindow(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	old := time.Now().Add(-72 * time.Hour)

	require.NoError(t, db.Create(&models.AuditLog{
		ID: "a-old", Action: "quota.alert.members", TargetType: "church", TargetID: "c1", CreatedAt: old,
	}).Error)
	require.NoError(t, db.Create(&models.OutboundMessage{
		ID: "m-old", Channel: ChannelEmail, Recipient: "admin@example.com", Template: TemplateDunning,
		DedupeKey: lo.ToPtr("dunning:s9:admin@example.com"), Status: models.OutboundMessageStatusQueued, CreatedAt: old,
	}).Error)

	day := time.Now().Add(-24 * time.Hour)
	ok, err := AuditedSince(ctx, db, "c1", "quota.alert.members", day)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = QueuedSince(ctx, db, "dunning:s9:admin@example.com", day)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AuditedSince(ctx, db, "c1", "quota.alert.members", old.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = QueuedSince(ctx, db, "dunning:s9:admin@example.com", time.Time{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminRecipients(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	staff := []models.StaffMember{
		{ID: "s1", ChurchID: "c1", Email: "b@example.com", Role: types.StaffRoleAdmin, Active: true},
		{ID: "s2", ChurchID: "c1", Email: "a@example.com", Role: types.StaffRoleAdmin, Active: true},
		{ID: "s3", ChurchID: "c1", Email: "staff@example.com", Role: types.StaffRoleStaff, Active: true},
		{ID: "s4", ChurchID: "c2", Email: "other@example.com", Role: types.StaffRoleAdmin, Active: true},
	}
	require.NoError(t, db.Create(&staff).Error)
	require.NoError(t, db.Create(&models.StaffMember{ID: "s5", ChurchID: "c1", Email: "gone@example.com", Role: types.StaffRoleAdmin}).Error)
	require.NoError(t, db.Model(&models.StaffMember{}).Where("id = ?", "s5").Update("active", false).Error)

	admins, err := AdminRecipients(ctx, db, "c1")
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "a@example.com", admins[0].Email)
	assert.Equal(t, "b@example.com", admins[1].Email)
}

func TestQueueReceipt(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	queued, err := QueueReceipt(ctx, db, &models.Donation{ID: "d1", ChurchID: "c1", Amount: decimal.NewFromInt(25), Currency: "USD"})
	require.NoError(t, err)
	assert.False(t, queued)

	queued, err = QueueReceipt(ctx, db, &models.Donation{
		ID: "d2", ChurchID: "c1", Amount: decimal.NewFromInt(25), Currency: "USD", DonorEmail: "ada@example.com",
	})
	require.NoError(t, err)
	assert.True(t, queued)

	var n int64
	require.NoError(t, db.Model(&models.OutboundMessage{}).Where("template = ?", TemplateDonationReceipt).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

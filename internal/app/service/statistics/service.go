// Package statistics serves a church's giving dashboard: donation counts and
// totals per day and currency, plus recurring gift counts.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/offertory/internal/models"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/logctx"
	"github.com/fatflowers/offertory/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyDonationCount StatisticType = "daily_donation_count"
	StatisticTypeDailyGiving        StatisticType = "daily_giving"
	StatisticTypeTotalGiving        StatisticType = "total_giving"

	StatisticTypeDailyNewRecurringCount StatisticType = "daily_new_recurring_count"
	StatisticTypeActiveRecurringCount   StatisticType = "active_recurring_count"
)

const (
	dateLayout = "2006-01-02"
	maxSpan    = 366 * 24 * time.Hour
)

type FilterField string

const (
	FilterFieldFundID     FilterField = "fund_id"
	FilterFieldCampaignID FilterField = "campaign_id"
	FilterFieldProvider   FilterField = "provider"
	FilterFieldCurrency   FilterField = "currency"
)

var donationStatistics = []StatisticType{
	StatisticTypeDailyDonationCount,
	StatisticTypeDailyGiving,
	StatisticTypeTotalGiving,
}

var allStatistics = []StatisticType{
	StatisticTypeDailyDonationCount,
	StatisticTypeDailyGiving,
	StatisticTypeTotalGiving,
	StatisticTypeDailyNewRecurringCount,
	StatisticTypeActiveRecurringCount,
}

// validFilters lists the statistics each filter field can narrow. Requesting
// a statistic together with a filter it cannot honor yields no rows for it.
var validFilters = map[FilterField][]StatisticType{
	FilterFieldFundID:     allStatistics,
	FilterFieldCampaignID: donationStatistics,
	FilterFieldProvider:   allStatistics,
	FilterFieldCurrency:   allStatistics,
}

// Donations that were received, including ones refunded since.
var receivedStatuses = []types.DonationStatus{types.DonationStatusCompleted, types.DonationStatusRefunded}

type DataItem struct {
	ID StatisticType `json:"id" binding:"required"`
}

type Request struct {
	ChurchID  string        `json:"-"`
	From      string        `json:"from" binding:"required" example:"2026-01-01"`
	To        string        `json:"to" binding:"required" example:"2026-01-31"`
	Filters   types.Filters `json:"filters"`
	DataItems []*DataItem   `json:"data_items" binding:"required,min=1"`
}

type ResponseDataItem struct {
	Date   string           `json:"date,omitempty"`
	Label  string           `json:"label,omitempty"`
	Count  int64            `json:"count"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

var Module = fx.Options(fx.Provide(NewService))

// window is the half-open UTC range [start, end) covering whole days.
type window struct {
	start, end time.Time
}

func parseWindow(from, to string) (window, error) {
	start, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		return window{}, apperr.Validation("from must be YYYY-MM-DD, got %q", from)
	}
	last, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		return window{}, apperr.Validation("to must be YYYY-MM-DD, got %q", to)
	}
	if last.Before(start) {
		return window{}, apperr.Validation("to %s is before from %s", to, from)
	}
	end := last.AddDate(0, 0, 1)
	if end.Sub(start) > maxSpan {
		return window{}, apperr.Validation("range %s..%s exceeds 366 days", from, to)
	}
	return window{start: start, end: end}, nil
}

// filtersFor keeps the filters that apply to typ. ok is false when some
// filter cannot be honored by typ at all.
func (r *Request) filtersFor(typ StatisticType) (types.Filters, bool) {
	out := make(types.Filters, 0, len(r.Filters))
	for _, f := range r.Filters {
		if f == nil {
			continue
		}
		applicable, known := validFilters[FilterField(f.Field)]
		if !known {
			continue
		}
		if !lo.Contains(applicable, typ) {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// GetGivingStatistic computes every requested data item concurrently.
func (s *Service) GetGivingStatistic(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.ChurchID == "" {
		return nil, apperr.Validation("church id is required")
	}
	if len(req.DataItems) == 0 {
		return nil, apperr.Validation("at least one data item is required")
	}
	win, err := parseWindow(req.From, req.To)
	if err != nil {
		return nil, err
	}
	for _, di := range req.DataItems {
		if di == nil || !lo.Contains(allStatistics, di.ID) {
			return nil, apperr.Validation("invalid data item id: %v", lo.FromPtr(di).ID)
		}
	}
	var church models.Church
	if err := s.db.WithContext(ctx).Select("id").Where("id = ?", req.ChurchID).Take(&church).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("church", req.ChurchID)
		}
		return nil, fmt.Errorf("load church %s: %w", req.ChurchID, err)
	}

	results := make([][]ResponseDataItem, len(req.DataItems))
	g, gctx := errgroup.WithContext(ctx)
	for i, di := range req.DataItems {
		g.Go(func() error {
			filters, ok := req.filtersFor(di.ID)
			if !ok {
				return nil
			}
			res, err := s.statistic(gctx, req.ChurchID, di.ID, win, filters)
			if err != nil {
				return fmt.Errorf("%s: %w", di.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("giving statistics failed", "church_id", req.ChurchID, "err", err)
		return nil, err
	}

	out := &Response{DataItems: make(map[StatisticType][]ResponseDataItem, len(req.DataItems))}
	for i, di := range req.DataItems {
		out.DataItems[di.ID] = results[i]
	}
	return out, nil
}

func (s *Service) statistic(ctx context.Context, churchID string, typ StatisticType, win window, filters types.Filters) ([]ResponseDataItem, error) {
	switch typ {
	case StatisticTypeDailyDonationCount, StatisticTypeDailyGiving, StatisticTypeTotalGiving:
		rows, err := s.receivedDonations(ctx, churchID, win, filters)
		if err != nil {
			return nil, err
		}
		switch typ {
		case StatisticTypeDailyDonationCount:
			return dailyCount(rows), nil
		case StatisticTypeDailyGiving:
			return dailyGiving(rows), nil
		default:
			return totalGiving(rows), nil
		}
	case StatisticTypeDailyNewRecurringCount:
		return s.dailyNewRecurring(ctx, churchID, win, filters)
	case StatisticTypeActiveRecurringCount:
		return s.activeRecurring(ctx, churchID, filters)
	default:
		return nil, apperr.Validation("invalid data item id: %s", typ)
	}
}

func where(q *gorm.DB, filters types.Filters) *gorm.DB {
	if len(filters) == 0 {
		return q
	}
	return q.Where(clause.Where{Exprs: []clause.Expression{filters}})
}

// Sums are done in decimal here rather than in SQL so that amounts never pass
// through a float on any driver.
func (s *Service) receivedDonations(ctx context.Context, churchID string, win window, filters types.Filters) ([]*models.Donation, error) {
	var rows []*models.Donation
	q := s.db.WithContext(ctx).
		Select("id", "amount", "currency", "completed_at").
		Where("church_id = ? AND status IN ?", churchID, receivedStatuses).
		Where("completed_at >= ? AND completed_at < ?", win.start, win.end)
	if err := where(q, filters).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load donations: %w", err)
	}
	return lo.Filter(rows, func(d *models.Donation, _ int) bool {
		return d.CompletedAt != nil && !d.CompletedAt.Before(win.start) && d.CompletedAt.Before(win.end)
	}), nil
}

func day(t time.Time) string { return t.UTC().Format(dateLayout) }

func dailyCount(rows []*models.Donation) []ResponseDataItem {
	counts := lo.CountValuesBy(rows, func(d *models.Donation) string { return day(*d.CompletedAt) })
	out := make([]ResponseDataItem, 0, len(counts))
	for date, n := range counts {
		out = append(out, ResponseDataItem{Date: date, Count: int64(n)})
	}
	sortItems(out)
	return out
}

type dayCurrency struct{ date, currency string }

func dailyGiving(rows []*models.Donation) []ResponseDataItem {
	groups := lo.GroupBy(rows, func(d *models.Donation) dayCurrency {
		return dayCurrency{date: day(*d.CompletedAt), currency: d.Currency}
	})
	out := make([]ResponseDataItem, 0, len(groups))
	for k, ds := range groups {
		out = append(out, sumItem(k.date, k.currency, ds))
	}
	sortItems(out)
	return out
}

func totalGiving(rows []*models.Donation) []ResponseDataItem {
	groups := lo.GroupBy(rows, func(d *models.Donation) string { return d.Currency })
	out := make([]ResponseDataItem, 0, len(groups))
	for currency, ds := range groups {
		out = append(out, sumItem("", currency, ds))
	}
	sortItems(out)
	return out
}

func sumItem(date, currency string, ds []*models.Donation) ResponseDataItem {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d.Amount)
	}
	return ResponseDataItem{Date: date, Label: currency, Count: int64(len(ds)), Amount: &total}
}

func (s *Service) dailyNewRecurring(ctx context.Context, churchID string, win window, filters types.Filters) ([]ResponseDataItem, error) {
	var rows []*models.RecurringDonation
	q := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("church_id = ?", churchID).
		Where("created_at >= ? AND created_at < ?", win.start, win.end)
	if err := where(q, filters).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load recurring donations: %w", err)
	}
	counts := lo.CountValuesBy(rows, func(r *models.RecurringDonation) string { return day(r.CreatedAt) })
	out := make([]ResponseDataItem, 0, len(counts))
	for date, n := range counts {
		out = append(out, ResponseDataItem{Date: date, Count: int64(n)})
	}
	sortItems(out)
	return out, nil
}

// activeRecurring is a point-in-time count per currency; the window does not apply.
func (s *Service) activeRecurring(ctx context.Context, churchID string, filters types.Filters) ([]ResponseDataItem, error) {
	var rows []*models.RecurringDonation
	q := s.db.WithContext(ctx).
		Select("id", "amount", "currency").
		Where("church_id = ? AND status = ?", churchID, types.RecurringStatusActive)
	if err := where(q, filters).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load recurring donations: %w", err)
	}
	groups := lo.GroupBy(rows, func(r *models.RecurringDonation) string { return r.Currency })
	out := make([]ResponseDataItem, 0, len(groups))
	for currency, rs := range groups {
		total := lo.Reduce(rs, func(acc decimal.Decimal, r *models.RecurringDonation, _ int) decimal.Decimal {
			return acc.Add(r.Amount)
		}, decimal.Zero)
		out = append(out, ResponseDataItem{Label: currency, Count: int64(len(rs)), Amount: &total})
	}
	sortItems(out)
	return out, nil
}

// sortItems orders newest day first, then by label.
func sortItems(items []ResponseDataItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].Label < items[j].Label
	})
}

// Package subscription resolves a church's plan and feature entitlements and
// keeps tenant subscriptions in step with platform billing.
package subscription

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/pkg/config"
)

const featureKeysCacheKey = "feature_keys"

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	cfg      *config.Config
	registry *gateway.Registry

	featureKeys *expirable.LRU[string, []string]
	group       singleflight.Group
	now         func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, registry *gateway.Registry) *Service {
	ttl := cfg.Billing.FeatureKeyCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		db:          db,
		log:         log,
		cfg:         cfg,
		registry:    registry,
		featureKeys: expirable.NewLRU[string, []string](1, nil, ttl),
		now:         time.Now,
	}
}

// InvalidateFeatureKeys drops the cached key list, e.g. after plan edits.
func (s *Service) InvalidateFeatureKeys() {
	s.featureKeys.Purge()
}

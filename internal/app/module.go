package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/offertory/internal/app/api/server"
	"github.com/fatflowers/offertory/internal/app/service/billingjobs"
	"github.com/fatflowers/offertory/internal/app/service/checkout"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/reconcile"
	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/app/service/statistics"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/app/service/webhook"
	"github.com/fatflowers/offertory/internal/platform/db"
	"github.com/fatflowers/offertory/internal/platform/providers"
	"github.com/fatflowers/offertory/internal/platform/realtime"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule wires storage, gateways and the billing services. It is shared
// by the API server and the billing jobs CLI.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	realtime.Module,
	providers.Module,
	subscription.Module,
	refund.Module,
	billingjobs.Module,
)

var Module = fx.Options(
	CoreModule,
	ledger.Module,
	checkout.Module,
	reconcile.Module,
	statistics.Module,
	webhook.Module,
	server.Module,
)

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/offertory/docs"
	"github.com/fatflowers/offertory/internal/app/api/handlers"
	mw "github.com/fatflowers/offertory/internal/app/api/middleware"
	"github.com/fatflowers/offertory/internal/app/service/billingjobs"
	"github.com/fatflowers/offertory/internal/app/service/checkout"
	"github.com/fatflowers/offertory/internal/app/service/ledger"
	"github.com/fatflowers/offertory/internal/app/service/refund"
	"github.com/fatflowers/offertory/internal/app/service/statistics"
	"github.com/fatflowers/offertory/internal/app/service/subscription"
	"github.com/fatflowers/offertory/internal/app/service/webhook"
	cfgpkg "github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	DB       *gorm.DB
	Checkout *checkout.Service
	Refunds  *refund.Service
	Stats    *statistics.Service
	Subs     *subscription.Service
	Ledger   *ledger.Service
	Jobs     *billingjobs.Service
	Webhooks *webhook.Service
}

func newMetrics(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) *metrics.Prometheus {
	p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
		ListenAddress: cfg.MetricsAddr,
		Logger:        log,
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Start()
			return nil
		},
		OnStop: p.Shutdown,
	})
	return p
}

func registerRoutes(r *gin.Engine, p *metrics.Prometheus, d routeDeps) {
	p.Use(r)

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware(d.Log))
	handlers.RegisterHealthRoutes(pub, d.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware(d.Log))
	handlers.RegisterCheckoutRoutes(apiV1, d.Checkout)
	handlers.RegisterBillingRoutes(apiV1, d.Refunds, d.Subs)
	handlers.RegisterStatisticsRoutes(apiV1, d.Stats)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), d.Ledger, d.Jobs, d.Subs)

	// Webhooks need the raw body for signature checks
	hooks := apiV1.Group("/webhooks")
	hooks.Use(mw.BodyLimit(handlers.MaxWebhookBody))
	handlers.RegisterWebhookRoutes(hooks, d.Webhooks)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server error", "error", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine, newMetrics),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

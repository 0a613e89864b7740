// Package providers builds the gateway registry from configuration. Each
// provider is registered once per scope it has credentials for.
package providers

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/offertory/internal/app/service/gateway"
	"github.com/fatflowers/offertory/internal/platform/paystack"
	"github.com/fatflowers/offertory/internal/platform/stripepay"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/types"
)

func NewRegistry(cfg *config.Config, factory *stripepay.ClientFactory, log *zap.SugaredLogger) *gateway.Registry {
	r := gateway.NewRegistry()
	timeout := cfg.Gateway.Timeout
	httpClient := &http.Client{Timeout: timeout}

	register := func(scope types.GatewayScope, g gateway.Gateway) {
		r.Register(scope, g)
		log.Infow("gateway registered", "scope", scope, "provider", g.Provider())
	}

	st := cfg.Stripe
	if st.SecretKey != "" {
		register(types.GatewayScopeGiving, stripepay.NewGateway(factory, stripepay.Options{
			SecretKey:     st.SecretKey,
			WebhookSecret: st.WebhookSecret,
			SuccessURL:    st.SuccessURL,
			CancelURL:     st.CancelURL,
			Timeout:       timeout,
		}))
	}
	if st.PlatformSecretKey != "" {
		register(types.GatewayScopePlatform, stripepay.NewGateway(factory, stripepay.Options{
			SecretKey:     st.PlatformSecretKey,
			WebhookSecret: st.PlatformWebhookSecret,
			SuccessURL:    st.SuccessURL,
			CancelURL:     st.CancelURL,
			Timeout:       timeout,
		}))
	}

	ps := cfg.Paystack
	if ps.SecretKey != "" {
		register(types.GatewayScopeGiving, paystack.NewGateway(
			paystack.NewClient(ps.BaseURL, ps.SecretKey, httpClient),
			paystack.Options{SecretKey: ps.SecretKey, CallbackURL: ps.CallbackURL, Timeout: timeout},
		))
	}
	if ps.PlatformSecretKey != "" {
		register(types.GatewayScopePlatform, paystack.NewGateway(
			paystack.NewClient(ps.BaseURL, ps.PlatformSecretKey, httpClient),
			paystack.Options{SecretKey: ps.PlatformSecretKey, CallbackURL: ps.CallbackURL, Timeout: timeout},
		))
	}
	return r
}

func newClientFactory(cfg *config.Config) *stripepay.ClientFactory {
	return stripepay.NewClientFactory(nil, cfg.Stripe.ClientCacheSize)
}

var Module = fx.Options(
	fx.Provide(newClientFactory, NewRegistry),
)

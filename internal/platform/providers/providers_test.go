package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/offertory/internal/platform/stripepay"
	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/config"
	"github.com/fatflowers/offertory/pkg/types"
)

func TestNewRegistry_RegistersConfiguredScopes(t *testing.T) {
	cfg := &config.Config{
		Stripe:   config.StripeConfig{SecretKey: "sk_test_giving", PlatformSecretKey: "sk_test_platform"},
		Paystack: config.PaystackConfig{SecretKey: "sk_test_paystack"},
	}
	r := NewRegistry(cfg, stripepay.NewClientFactory(nil, 4), zap.NewNop().Sugar())

	for _, tc := range []struct {
		scope    types.GatewayScope
		provider types.PaymentProvider
		ok       bool
	}{
		{types.GatewayScopeGiving, types.PaymentProviderStripe, true},
		{types.GatewayScopePlatform, types.PaymentProviderStripe, true},
		{types.GatewayScopeGiving, types.PaymentProviderPaystack, true},
		{types.GatewayScopePlatform, types.PaymentProviderPaystack, false},
	} {
		g, err := r.Get(tc.scope, tc.provider)
		if !tc.ok {
			require.ErrorIs(t, err, apperr.ErrValidation, "%s/%s", tc.scope, tc.provider)
			continue
		}
		require.NoError(t, err, "%s/%s", tc.scope, tc.provider)
		assert.Equal(t, tc.provider, g.Provider())
	}
}

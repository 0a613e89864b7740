package gateway

import (
	"fmt"

	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/types"
)

type registryKey struct {
	scope    types.GatewayScope
	provider types.PaymentProvider
}

// Registry holds one gateway per (scope, provider). Scopes keep church
// giving and platform billing on separate credentials.
type Registry struct {
	gateways map[registryKey]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: map[registryKey]Gateway{}}
}

func (r *Registry) Register(scope types.GatewayScope, g Gateway) {
	r.gateways[registryKey{scope, g.Provider()}] = g
}

func (r *Registry) Get(scope types.GatewayScope, provider types.PaymentProvider) (Gateway, error) {
	g, ok := r.gateways[registryKey{scope, provider}]
	if !ok {
		return nil, fmt.Errorf("%w: no %s gateway configured for %s", apperr.ErrValidation, scope, provider)
	}
	return g, nil
}

func (r *Registry) Giving(provider types.PaymentProvider) (Gateway, error) {
	return r.Get(types.GatewayScopeGiving, provider)
}

func (r *Registry) Platform(provider types.PaymentProvider) (Gateway, error) {
	return r.Get(types.GatewayScopePlatform, provider)
}

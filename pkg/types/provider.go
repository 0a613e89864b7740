package types

type PaymentProvider string

const (
	PaymentProviderStripe   PaymentProvider = "STRIPE"
	PaymentProviderPaystack PaymentProvider = "PAYSTACK"
	PaymentProviderManual   PaymentProvider = "MANUAL"
)

func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentProviderStripe, PaymentProviderPaystack, PaymentProviderManual:
		return true
	}
	return false
}

// IsGateway reports whether payments for p go through an external gateway.
func (p PaymentProvider) IsGateway() bool {
	return p == PaymentProviderStripe || p == PaymentProviderPaystack
}

// GatewayScope separates church giving credentials from the platform's own
// tenant billing credentials for the same provider.
type GatewayScope string

const (
	GatewayScopeGiving   GatewayScope = "giving"
	GatewayScopePlatform GatewayScope = "platform"
)

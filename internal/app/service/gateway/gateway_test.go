package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/offertory/pkg/apperr"
	"github.com/fatflowers/offertory/pkg/types"
)

func TestCorrelationMetadataRoundTrip(t *testing.T) {
	c := Correlation{PaymentIntentID: "pi-1", ChurchID: "ch-1", DonationID: "d-1"}
	md := c.Metadata()
	require.Equal(t, map[string]string{"payment_intent_id": "pi-1", "church_id": "ch-1", "donation_id": "d-1"}, md)
	require.Equal(t, c, CorrelationFromMetadata(md))
	require.True(t, CorrelationFromMetadata(nil).IsZero())
}

func TestCorrelationMerge(t *testing.T) {
	a := Correlation{ChurchID: "ch-1"}
	b := Correlation{ChurchID: "other", RecurringDonationID: "rd-1"}
	merged := a.Merge(b)
	require.Equal(t, "ch-1", merged.ChurchID)
	require.Equal(t, "rd-1", merged.RecurringDonationID)
	require.Empty(t, a.RecurringDonationID)
}

type namedGateway struct {
	Gateway
	p types.PaymentProvider
}

func (n namedGateway) Provider() types.PaymentProvider { return n.p }

func (n namedGateway) ParseWebhook(context.Context, []byte, http.Header) (*Delivery, error) {
	return nil, nil
}

func TestRegistryScopes(t *testing.T) {
	r := NewRegistry()
	giving := namedGateway{p: types.PaymentProviderStripe}
	r.Register(types.GatewayScopeGiving, giving)

	g, err := r.Giving(types.PaymentProviderStripe)
	require.NoError(t, err)
	require.Equal(t, types.PaymentProviderStripe, g.Provider())

	_, err = r.Platform(types.PaymentProviderStripe)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCorrelationDonorFields(t *testing.T) {
	c := Correlation{Anonymous: AnonymityFlag(false), DonorEmail: "ada@example.com"}
	require.Equal(t, map[string]any{"is_anonymous": false, "donor_email": "ada@example.com"}, c.DonorFields())
	require.Equal(t, c, CorrelationFromMetadata(c.Metadata()))
	require.Empty(t, Correlation{Anonymous: "maybe"}.DonorFields())
}

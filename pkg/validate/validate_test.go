package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/offertory/pkg/apperr"
)

type sample struct {
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency" validate:"required,currency3"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Quantity int             `json:"quantity" validate:"min=1"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&sample{Amount: decimal.NewFromInt(5), Currency: "usd", Quantity: 1}))

	err := Struct(&sample{Amount: decimal.Zero, Currency: "dollars", Email: "nope", Quantity: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "amount must be greater than zero")
	assert.Contains(t, err.Error(), "currency must be a 3-letter currency code")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "quantity must be at least 1")
}

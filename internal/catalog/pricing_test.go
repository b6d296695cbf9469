package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func widget() *models.Product {
	return &models.Product{
		SKU:   "W-1",
		Name:  "Widget",
		Price: dec("10.00"),
		GroupPrices: types.GroupPrices{
			"wholesale": dec("8.50"),
		},
		VolumeTiers: types.VolumeTiers{
			{MinQty: 50, UnitPrice: dec("7.00")},
			{MinQty: 10, UnitPrice: dec("9.00")},
		},
		Active: true,
	}
}

func TestQuoteListPrice(t *testing.T) {
	quote, err := NewPricing().Quote(widget(), 1, "")
	require.NoError(t, err)
	assert.True(t, quote.UnitPrice.Equal(dec("10")))
	assert.True(t, quote.Discount.IsZero())
	assert.Nil(t, quote.TierMinQty)
	assert.False(t, quote.GroupPrice)
}

func TestQuoteHighestTierReached(t *testing.T) {
	pricing := NewPricing()

	quote, err := pricing.Quote(widget(), 12, "")
	require.NoError(t, err)
	assert.True(t, quote.UnitPrice.Equal(dec("9")), "unit=%s", quote.UnitPrice)
	require.NotNil(t, quote.TierMinQty)
	assert.Equal(t, 10, *quote.TierMinQty)
	assert.True(t, quote.Discount.Equal(dec("1")))

	quote, err = pricing.Quote(widget(), 50, "")
	require.NoError(t, err)
	assert.True(t, quote.UnitPrice.Equal(dec("7")))
}

func TestQuoteGroupPriceBeatsMoreExpensiveTier(t *testing.T) {
	quote, err := NewPricing().Quote(widget(), 12, "wholesale")
	require.NoError(t, err)
	assert.True(t, quote.GroupPrice)
	assert.True(t, quote.UnitPrice.Equal(dec("8.5")))
	assert.Nil(t, quote.TierMinQty)
	assert.True(t, quote.Discount.Equal(dec("1.5")))

	quote, err = NewPricing().Quote(widget(), 60, "wholesale")
	require.NoError(t, err)
	assert.True(t, quote.UnitPrice.Equal(dec("7")))
}

func TestQuoteUnknownGroupFallsBackToList(t *testing.T) {
	quote, err := NewPricing().Quote(widget(), 1, "retail")
	require.NoError(t, err)
	assert.True(t, quote.UnitPrice.Equal(dec("10")))
}

func TestQuoteRejectsBadInput(t *testing.T) {
	_, err := NewPricing().Quote(widget(), 0, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewPricing().Quote(nil, 1, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewPricing().Quote(&models.Product{SKU: "X", Price: dec("-1")}, 1, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

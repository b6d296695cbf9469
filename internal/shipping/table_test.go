package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

type stubMethods struct {
	methods []models.ShippingMethod
	err     error
}

func (s stubMethods) ListShippingMethods(context.Context) ([]models.ShippingMethod, error) {
	return s.methods, s.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func request(country string) pricing.ShippingRequest {
	return pricing.ShippingRequest{
		Address: &types.Address{Country: country},
		Items: []*models.OrderLineItem{
			{ID: uuid.New(), Quantity: 2, UnitPrice: dec("10.00")},
			{ID: uuid.New(), Quantity: 1, UnitPrice: dec("5.00")},
		},
	}
}

func TestListQuotesRatesAndCountries(t *testing.T) {
	flat := models.ShippingMethod{ID: uuid.New(), Code: "flat", BaseRate: dec("5.00"), PerUnitRate: dec("0.50"), Active: true}
	domestic := models.ShippingMethod{ID: uuid.New(), Code: "domestic", BaseRate: dec("3.00"), Countries: types.StringList{"us"}, Active: true}
	retired := models.ShippingMethod{ID: uuid.New(), Code: "retired", BaseRate: dec("1.00")}
	provider := NewTableProvider(stubMethods{methods: []models.ShippingMethod{flat, domestic, retired}})

	quotes, err := provider.ListQuotes(context.Background(), request("US"))
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, flat.ID, quotes[0].MethodID)
	assert.True(t, quotes[0].Quote.Equal(dec("6.50")), "got %s", quotes[0].Quote)
	assert.True(t, quotes[0].Discount.IsZero())
	assert.False(t, quotes[0].MultiOption)

	quotes, err = provider.ListQuotes(context.Background(), request("CA"))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, flat.ID, quotes[0].MethodID)
}

func TestListQuotesSubOptionsAndFreeOver(t *testing.T) {
	method := models.ShippingMethod{
		ID:       uuid.New(),
		Code:     "parcel",
		Active:   true,
		FreeOver: decimal.NewNullDecimal(dec("25.00")),
		SubOptions: types.ShippingSubOptions{
			{ID: "ground", Label: "Ground", Rate: dec("7.00")},
			{ID: "air", Label: "Air", Rate: dec("19.00")},
		},
	}
	provider := NewTableProvider(stubMethods{methods: []models.ShippingMethod{method}})

	quotes, err := provider.ListQuotes(context.Background(), request("US"))
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, quotes[0].MultiOption)
	assert.Equal(t, method.ID.String()+"_ground", quotes[0].SubOptionID)
	assert.Equal(t, "Ground", quotes[0].SubOptionLabel)
	assert.True(t, quotes[1].Quote.Equal(dec("19")))
	assert.True(t, quotes[1].Discount.Equal(quotes[1].Quote), "gross subtotal reaches free-over threshold")

	ground := "ground"
	match, ok := pricing.MatchShippingCandidate(quotes, method.ID, &ground)
	require.True(t, ok)
	assert.Equal(t, "Ground", match.SubOptionLabel)
}

func TestListQuotesPropagatesErrors(t *testing.T) {
	provider := NewTableProvider(stubMethods{err: errors.New("db down")})
	_, err := provider.ListQuotes(context.Background(), request("US"))
	assert.Error(t, err)
}

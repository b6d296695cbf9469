package pricing

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lineItem(unit string, qty int) *models.OrderLineItem {
	return &models.OrderLineItem{ID: uuid.New(), Name: "item", Quantity: qty, UnitPrice: dec(unit)}
}

func TestDiscountMapTokenRoundTrip(t *testing.T) {
	a, b := lineItem("10.00", 2), lineItem("5.00", 1)
	m := NewDiscountMap()
	m.Set(KeyFor(a), dec("1.255"))
	m.Set(KeyFor(b), dec("-3"))

	token, err := m.Encode()
	require.NoError(t, err)

	decoded, err := DecodeDiscountMap(token)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Len())
	got, ok := decoded.Get(KeyFor(a))
	require.True(t, ok)
	assert.True(t, got.Equal(dec("1.26")), "got %s", got)
	got, _ = decoded.Get(KeyFor(b))
	assert.True(t, got.IsZero())
	assert.Equal(t, m.Keys(), decoded.Keys())
}

func TestDecodeDiscountMapFailuresAreEnrichmentErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not base64":  "%%%",
		"not json":    base64.RawURLEncoding.EncodeToString([]byte("{")),
		"old version": base64.RawURLEncoding.EncodeToString([]byte(`{"v":0,"discounts":{}}`)),
		"negative":    base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"discounts":{"a":"-1"}}`)),
		"empty key":   base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"discounts":{"":"1"}}`)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDiscountMap(token)
			var enrichment *EnrichmentError
			require.True(t, errors.As(err, &enrichment), "got %v", err)
			assert.Equal(t, "decode discount map", enrichment.Op)
		})
	}
}

func TestApplyItemDiscountsClampsAndCounts(t *testing.T) {
	a, b, c := lineItem("10.00", 2), lineItem("5.00", 1), lineItem("3.00", 4)
	m := NewDiscountMap()
	m.Set(KeyFor(a), dec("1.25"))
	m.Set(KeyFor(b), dec("7.00"))

	assert.Equal(t, 2, ApplyItemDiscounts([]*models.OrderLineItem{a, b, c}, m))
	assert.True(t, a.Discount.Equal(dec("1.25")))
	assert.True(t, b.Discount.Equal(dec("5.00")), "discount must not exceed unit price")
	assert.True(t, c.Discount.IsZero())

	assert.Equal(t, 0, ApplyItemDiscounts([]*models.OrderLineItem{a}, nil))
}

func TestWeightedTotal(t *testing.T) {
	a, b := lineItem("10.00", 2), lineItem("5.00", 3)
	m := NewDiscountMap()
	m.Set(KeyFor(a), dec("1.25"))
	m.Set(KeyFor(b), dec("0.10"))
	assert.True(t, m.WeightedTotal([]*models.OrderLineItem{a, b}).Equal(dec("2.80")))
}

package pricing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

const discountMapVersion = 1

// DiscountMap holds per-unit item discounts carried between round trips.
type DiscountMap struct {
	entries map[ItemKey]decimal.Decimal
}

// NewDiscountMap returns an empty map.
func NewDiscountMap() *DiscountMap {
	return &DiscountMap{entries: map[ItemKey]decimal.Decimal{}}
}

// Set stores a per-unit discount, rounded and never negative.
func (m *DiscountMap) Set(key ItemKey, amount decimal.Decimal) {
	m.entries[key] = money.Round(money.ClampNonNegative(amount))
}

func (m *DiscountMap) Get(key ItemKey) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	d, ok := m.entries[key]
	return d, ok
}

func (m *DiscountMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in sorted order.
func (m *DiscountMap) Keys() []ItemKey {
	if m == nil {
		return nil
	}
	keys := make([]ItemKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// WeightedTotal is the sum of discount times quantity over the given items.
// Items without an entry contribute nothing.
func (m *DiscountMap) WeightedTotal(items []*models.OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if d, ok := m.Get(KeyFor(item)); ok {
			total = total.Add(money.MulQty(d, item.Quantity))
		}
	}
	return total
}

type discountMapWire struct {
	Version   int                         `json:"v"`
	Discounts map[ItemKey]decimal.Decimal `json:"discounts"`
}

// Encode renders the map as an opaque URL-safe token.
func (m *DiscountMap) Encode() (string, error) {
	wire := discountMapWire{Version: discountMapVersion, Discounts: map[ItemKey]decimal.Decimal{}}
	if m != nil {
		for k, v := range m.entries {
			wire.Discounts[k] = v
		}
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode discount map: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// EnrichmentError reports a best-effort input that could not be used. It is
// logged and skipped, never returned to API callers.
type EnrichmentError struct {
	Op  string
	Err error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// DecodeDiscountMap parses a token produced by Encode. Any failure is an
// *EnrichmentError.
func DecodeDiscountMap(token string) (*DiscountMap, error) {
	fail := func(err error) (*DiscountMap, error) {
		return nil, &EnrichmentError{Op: "decode discount map", Err: err}
	}
	if token == "" {
		return fail(errors.New("empty token"))
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fail(err)
	}
	var wire discountMapWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return fail(err)
	}
	if wire.Version != discountMapVersion {
		return fail(fmt.Errorf("unsupported version %d", wire.Version))
	}
	out := NewDiscountMap()
	for k, v := range wire.Discounts {
		if k == "" {
			return fail(errors.New("empty item key"))
		}
		if v.IsNegative() {
			return fail(fmt.Errorf("negative discount for %s", k))
		}
		out.Set(k, v)
	}
	return out, nil
}

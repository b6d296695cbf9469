package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// VolumeTier lowers the unit price once the quantity reaches MinQty.
type VolumeTier struct {
	MinQty    int             `json:"min_qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type VolumeTiers []VolumeTier

// Sorted returns the tiers ordered by ascending MinQty.
func (v VolumeTiers) Sorted() VolumeTiers {
	out := append(VolumeTiers(nil), v...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQty < out[j].MinQty })
	return out
}

func (v VolumeTiers) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]VolumeTier(v))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (v *VolumeTiers) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var decoded []VolumeTier
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("volume tiers: %w", err)
	}
	*v = decoded
	return nil
}

// GroupPrices maps a customer group id to its unit price override.
type GroupPrices map[string]decimal.Decimal

func (g GroupPrices) Value() (driver.Value, error) {
	if g == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]decimal.Decimal(g))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (g *GroupPrices) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}
	var decoded map[string]decimal.Decimal
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("group prices: %w", err)
	}
	*g = decoded
	return nil
}

// ShippingSubOption is one rate variant of a multi-rate shipping method.
type ShippingSubOption struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Rate  decimal.Decimal `json:"rate"`
}

type ShippingSubOptions []ShippingSubOption

func (s ShippingSubOptions) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]ShippingSubOption(s))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *ShippingSubOptions) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var decoded []ShippingSubOption
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("shipping sub-options: %w", err)
	}
	*s = decoded
	return nil
}

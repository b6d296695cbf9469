// Package money holds the rounding and allocation rules shared by every
// pricing computation. Amounts are decimals in the store currency and are
// rounded to cents, half away from zero, at the point each value is produced.
package money

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for currency amounts.
const Places int32 = 2

var cent = decimal.New(1, -Places)

// Round rounds an amount to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// MulQty returns unit times quantity, rounded.
func MulQty(unit decimal.Decimal, qty int) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(int64(qty))))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampNonNegative returns zero for negative amounts.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Parse reads a user supplied amount such as "12.50". Currency symbols and
// thousands separators are not accepted.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// Allocate splits total across weights proportionally so that the parts are
// rounded to cents and sum exactly to the rounded total. Leftover cents go to
// the largest fractional remainders, ties to the earlier index. Zero or
// negative weights receive nothing.
func Allocate(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	result := make([]decimal.Decimal, len(weights))
	for i := range result {
		result[i] = decimal.Zero
	}

	total = Round(total)
	if len(weights) == 0 || !total.IsPositive() {
		return result
	}

	weightSum := decimal.Zero
	for _, w := range weights {
		if w.IsPositive() {
			weightSum = weightSum.Add(w)
		}
	}
	if weightSum.IsZero() {
		return result
	}

	type remainder struct {
		index int
		frac  decimal.Decimal
	}

	totalCents := total.Shift(Places).IntPart()
	allocated := int64(0)
	remainders := make([]remainder, 0, len(weights))
	for i, w := range weights {
		if !w.IsPositive() {
			continue
		}
		exact := total.Shift(Places).Mul(w).Div(weightSum)
		floor := exact.Floor()
		result[i] = floor.Shift(-Places)
		allocated += floor.IntPart()
		remainders = append(remainders, remainder{index: i, frac: exact.Sub(floor)})
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac.GreaterThan(remainders[b].frac)
	})

	for left, k := totalCents-allocated, 0; left > 0 && len(remainders) > 0; left, k = left-1, k+1 {
		idx := remainders[k%len(remainders)].index
		result[idx] = result[idx].Add(cent)
	}
	return result
}

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}

func scanJSON(value interface{}, dest any) error {
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// TaxBuckets holds named tax amounts, e.g. {"sales_tax": "1.80"}.
type TaxBuckets map[string]decimal.Decimal

// Total sums every bucket.
func (b TaxBuckets) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	return total
}

// Names returns the bucket names in a stable order.
func (b TaxBuckets) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (b TaxBuckets) Clone() TaxBuckets {
	if b == nil {
		return nil
	}
	out := make(TaxBuckets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Add accumulates other into b, allocating b when needed.
func (b TaxBuckets) Add(other TaxBuckets) TaxBuckets {
	if b == nil {
		b = TaxBuckets{}
	}
	for k, v := range other {
		b[k] = b[k].Add(v)
	}
	return b
}

func (b TaxBuckets) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]decimal.Decimal(b))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (b *TaxBuckets) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	var decoded map[string]decimal.Decimal
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("tax buckets: %w", err)
	}
	*b = decoded
	return nil
}

// AppliedRule describes one promotion applied to an order, kept for display
// and audit.
type AppliedRule struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

type AppliedRules []AppliedRule

func (r AppliedRules) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]AppliedRule(r))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (r *AppliedRules) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var decoded []AppliedRule
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("applied rules: %w", err)
	}
	*r = decoded
	return nil
}

// StringList stores a list of identifiers in a JSON column.
type StringList []string

// Contains reports whether v is in the list.
func (l StringList) Contains(v string) bool {
	for _, item := range l {
		if item == v {
			return true
		}
	}
	return false
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var decoded []string
	if err := scanJSON(value, &decoded); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = decoded
	return nil
}

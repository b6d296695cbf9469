package pricing

import (
	"context"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

// WriteBackResult reports what an item discount write-back changed.
// Discounts is the decoded map, nil when the token was skipped.
type WriteBackResult struct {
	Applied   int          `json:"applied"`
	Skipped   bool         `json:"skipped"`
	Discounts *DiscountMap `json:"-"`
}

// ApplyItemDiscounts sets the discount of every item present in m and returns
// how many items matched. Discounts are clamped to the unit price.
func ApplyItemDiscounts(items []*models.OrderLineItem, m *DiscountMap) int {
	if m.Len() == 0 {
		return 0
	}
	applied := 0
	for _, item := range items {
		if d, ok := m.Get(KeyFor(item)); ok {
			item.SetDiscount(d)
			applied++
		}
	}
	return applied
}

// ApplyEncodedItemDiscounts decodes a discount token and applies it to items,
// saving each matched item when persist is set. A token that cannot be decoded
// leaves the items untouched and is not an error.
func (s *Service) ApplyEncodedItemDiscounts(ctx context.Context, items []*models.OrderLineItem, token string, persist bool) (WriteBackResult, error) {
	m, ok := s.decodeOverrides(ctx, token)
	if !ok {
		return WriteBackResult{Skipped: true}, nil
	}

	result := WriteBackResult{Applied: ApplyItemDiscounts(items, m), Discounts: m}
	if !persist || result.Applied == 0 {
		return result, nil
	}
	for _, item := range items {
		if _, found := m.Get(KeyFor(item)); !found {
			continue
		}
		if err := s.repo.SaveItem(ctx, item); err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save line item")
		}
	}
	return result, nil
}

// decodeOverrides decodes a token, logging and counting failures.
func (s *Service) decodeOverrides(ctx context.Context, token string) (*DiscountMap, bool) {
	if token == "" {
		return nil, false
	}
	m, err := DecodeDiscountMap(token)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "pricing.enrichment_skipped")
		s.metrics.IncEvent(metrics.EventEnrichmentSkipped)
		return nil, false
	}
	return m, true
}

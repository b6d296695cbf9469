package shipping

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

type methodLister interface {
	ListShippingMethods(ctx context.Context) ([]models.ShippingMethod, error)
}

// TableProvider quotes the table-rate shipping methods configured in the
// database: a base rate (or a sub-option rate) plus a per-unit rate, with a
// full shipping discount once the gross subtotal reaches FreeOver.
type TableProvider struct {
	methods methodLister
}

func NewTableProvider(methods methodLister) *TableProvider {
	return &TableProvider{methods: methods}
}

func (p *TableProvider) ListQuotes(ctx context.Context, req pricing.ShippingRequest) ([]pricing.ShippingQuoteCandidate, error) {
	methods, err := p.methods.ListShippingMethods(ctx)
	if err != nil {
		return nil, err
	}

	country := req.Address.CountryCode()
	units := 0
	gross := decimal.Zero
	for _, item := range req.Items {
		units += item.Quantity
		gross = gross.Add(item.GrossTotal())
	}

	var out []pricing.ShippingQuoteCandidate
	for _, method := range methods {
		if !method.Active || !method.ShipsTo(country) {
			continue
		}
		perUnit := money.MulQty(method.PerUnitRate, units)
		free := method.FreeOver.Valid && gross.GreaterThanOrEqual(method.FreeOver.Decimal)

		if len(method.SubOptions) == 0 {
			quote := money.Round(method.BaseRate.Add(perUnit))
			out = append(out, candidate(method, quote, free))
			continue
		}
		for _, sub := range method.SubOptions {
			quote := money.Round(sub.Rate.Add(perUnit))
			c := candidate(method, quote, free)
			c.MultiOption = true
			c.SubOptionID = method.ID.String() + "_" + sub.ID
			c.SubOptionLabel = sub.Label
			out = append(out, c)
		}
	}
	return out, nil
}

func candidate(method models.ShippingMethod, quote decimal.Decimal, free bool) pricing.ShippingQuoteCandidate {
	c := pricing.ShippingQuoteCandidate{MethodID: method.ID, Quote: quote, Discount: decimal.Zero}
	if free {
		c.Discount = quote
	}
	return c
}

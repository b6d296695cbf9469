package pricing

import (
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

// ValidateForSave checks what must hold before an order is written: a
// shipping method that quotes for the address and a payment method.
func ValidateForSave(order *models.Order, totals TotalsResult) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !order.Editable() {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot be changed", order.Status)
	}
	if !order.HasShippingMethod() {
		return pkgerrors.New(pkgerrors.CodeValidation, "please select a shipping method")
	}
	if totals.ShippingRequoted && totals.Shipping == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "the selected shipping method is not available for the shipping address")
	}
	if order.PaymentMethodID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "please select a payment method")
	}
	if len(totals.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	for _, item := range totals.Items {
		if item.Quantity <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for %s must be a positive integer", item.Name)
		}
	}
	return nil
}

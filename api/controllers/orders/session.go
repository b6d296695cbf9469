package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// BeginSession opens an edit session seeded with the order's saved items.
func BeginSession(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := deps.Pricing.LoadOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !order.Editable() {
			responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot be changed", order.Status))
			return
		}
		session, err := deps.Sessions.Begin(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// AddItem stages a catalog product in the session.
func AddItem(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
			return
		}

		group, err := customerGroup(ctx, deps, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := deps.Sessions.AddProduct(ctx, req.SessionKey, orderID, productID, req.Quantity, group)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// UpdateItem changes the quantity of a staged item.
func UpdateItem(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updateItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		group, err := customerGroup(ctx, deps, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := deps.Sessions.UpdateQuantity(ctx, req.SessionKey, orderID, itemID, req.Quantity, group)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// RemoveItem drops a staged item and returns the remaining session items.
func RemoveItem(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		key := validators.QueryString(r, "session_key")
		if key == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_key is required"))
			return
		}

		if err := deps.Sessions.RemoveItem(ctx, key, orderID, itemID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := deps.Sessions.SessionItems(ctx, key, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"session_key": key, "items": items})
	}
}

// DiscardSession drops staged edits without touching the saved order.
func DiscardSession(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, err := validators.ParseUUIDParam(r, "orderId"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		key := validators.QueryString(r, "session_key")
		if key == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_key is required"))
			return
		}
		if err := deps.Sessions.Discard(ctx, key); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func customerGroup(ctx context.Context, deps Deps, orderID uuid.UUID) (string, error) {
	order, err := deps.Pricing.LoadOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	customer, err := deps.Pricing.LoadCustomer(ctx, order)
	if err != nil {
		return "", err
	}
	return customer.Group(), nil
}

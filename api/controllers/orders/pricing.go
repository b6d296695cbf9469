package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const defaultLockTTL = 30 * time.Second

// Recalculate reprices an order, optionally staged in a session. With
// persist the result is saved exactly like Save.
func Recalculate(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req recalculateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		run := func() (pricing.RecalcResult, error) {
			order, err := deps.Pricing.LoadOrder(ctx, orderID)
			if err != nil {
				return pricing.RecalcResult{}, err
			}
			return deps.Pricing.RecalcOrderDiscounts(ctx, pricing.RecalcInput{
				Order:               order,
				SessionKey:          req.SessionKey,
				Persist:             req.Persist,
				SkipShippingRequote: req.SkipShippingRequote,
				DiscountsToken:      req.DiscountsToken,
			})
		}

		var result pricing.RecalcResult
		if req.Persist {
			err = withOrderLock(ctx, deps, logg, orderID, func() error {
				var runErr error
				result, runErr = run()
				return runErr
			})
		} else {
			result, err = run()
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponse(result))
	}
}

// ManualDiscount applies an amount or percentage spread over the order's
// items and returns the repriced order with a token that carries the
// discounts to a later save.
func ManualDiscount(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req manualDiscountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := deps.Pricing.LoadOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := loadItems(ctx, deps, req.SessionKey, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		manual, err := deps.Pricing.ApplyManualDiscount(ctx, order, items, req.Value)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := deps.Pricing.RecalcOrderDiscounts(ctx, pricing.RecalcInput{
			Order:           order,
			SessionKey:      req.SessionKey,
			ManualDiscounts: manual.Discounts,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ManualDiscountResponse{OrderResponse: orderResponse(result), Manual: manual})
	}
}

// Save reprices and persists the order under the order lock, flushing the
// edit session when one is given.
func Save(deps Deps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req saveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var result pricing.RecalcResult
		err = withOrderLock(ctx, deps, logg, orderID, func() error {
			order, err := deps.Pricing.LoadOrder(ctx, orderID)
			if err != nil {
				return err
			}
			result, err = deps.Pricing.RecalcOrderDiscounts(ctx, pricing.RecalcInput{
				Order:          order,
				SessionKey:     req.SessionKey,
				Persist:        true,
				DiscountsToken: req.DiscountsToken,
			})
			return err
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponse(result))
	}
}

func loadItems(ctx context.Context, deps Deps, sessionKey string, orderID uuid.UUID) ([]*models.OrderLineItem, error) {
	if sessionKey != "" {
		return deps.Sessions.SessionItems(ctx, sessionKey, orderID)
	}
	items, err := deps.Items.ListItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return items, nil
}

func withOrderLock(ctx context.Context, deps Deps, logg *logger.Logger, orderID uuid.UUID, fn func() error) error {
	if deps.Locker == nil {
		return fn()
	}
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	scope := "order:" + orderID.String()
	owner := uuid.NewString()

	ok, err := deps.Locker.AcquireLock(ctx, scope, owner, ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is being saved by another request")
	}
	defer func() {
		if err := deps.Locker.ReleaseLock(context.WithoutCancel(ctx), scope, owner); err != nil && logg != nil {
			logg.Error(logg.WithOrderID(ctx, orderID.String()), "orders.lock_release_failed", err)
		}
	}()
	return fn()
}

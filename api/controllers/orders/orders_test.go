package orders_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	ordercontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/orders"
	"github.com/angelmondragon/orderdesk-backend/api/routes"
	"github.com/angelmondragon/orderdesk-backend/internal/cartrules"
	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	"github.com/angelmondragon/orderdesk-backend/internal/deferred"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/internal/shipping"
	"github.com/angelmondragon/orderdesk-backend/internal/tax"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type orderView struct {
	ID       uuid.UUID       `json:"id"`
	CouponID *uuid.UUID      `json:"coupon_id"`
	Discount decimal.Decimal `json:"discount"`
	GoodsTax decimal.Decimal `json:"goods_tax"`
	Total    decimal.Decimal `json:"total"`
}

type itemView struct {
	ID        uuid.UUID       `json:"id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type pricedEnvelope struct {
	Data struct {
		Order          orderView  `json:"order"`
		Items          []itemView `json:"items"`
		DiscountsToken string     `json:"discounts_token"`
		ManualDiscount struct {
			Applied decimal.Decimal `json:"applied"`
			Percent bool            `json:"percent"`
		} `json:"manual_discount"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error types.APIError `json:"error"`
}

type fixture struct {
	router  http.Handler
	conn    *gorm.DB
	repo    orders.Repository
	redis   *redis.Client
	order   *models.Order
	product *models.Product
}

// newFixture seeds an open order of 2 x 10.00 and 1 x 5.00 shipped flat rate
// 5.00 to the US with 8% tax, and serves it through the real router.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)

	method := &models.ShippingMethod{Code: "flat", Name: "Flat rate", BaseRate: dec("5.00"), Active: true}
	require.NoError(t, conn.Create(method).Error)
	payment := &models.PaymentMethod{Code: "invoice", Name: "Invoice", Active: true}
	require.NoError(t, conn.Create(payment).Error)
	product := &models.Product{SKU: "S-1", Name: "Sprocket", Price: dec("10.00"), Cost: dec("3.00"), Active: true}
	require.NoError(t, conn.Create(product).Error)

	order := &models.Order{
		Number:           "SO-100",
		Status:           models.OrderStatusOpen,
		ShippingMethodID: &method.ID,
		PaymentMethodID:  &payment.ID,
		ShippingAddress:  &types.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
		CurrencyRate:     decimal.NewFromInt(1),
	}
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NoError(t, repo.SaveItem(ctx, &models.OrderLineItem{OrderID: order.ID, SKU: "W-1", Name: "Widget", Quantity: 2, UnitPrice: dec("10.00"), Position: 0}))
	require.NoError(t, repo.SaveItem(ctx, &models.OrderLineItem{OrderID: order.ID, SKU: "G-1", Name: "Gadget", Quantity: 1, UnitPrice: dec("5.00"), Position: 1}))

	mr := miniredis.RunT(t)
	redisClient := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	sessions, err := deferred.NewService(deferred.ServiceParams{
		Store:    deferred.NewRedisStore(redisClient, time.Hour),
		Items:    repo,
		Products: repo,
		Pricer:   catalog.NewPricing(),
	})
	require.NoError(t, err)

	svc, err := pricing.NewService(pricing.ServiceParams{
		Tx:       db.NewFromConn(conn),
		Repo:     repo,
		Sessions: sessions,
		Shipping: shipping.NewTableProvider(repo),
		Tax:      tax.NewRateTable(map[string]decimal.Decimal{"US": dec("8")}, "sales_tax", false),
		Rules:    cartrules.NewCouponEngine(repo),
	})
	require.NoError(t, err)

	deps := ordercontrollers.Deps{
		Pricing:  svc,
		Sessions: sessions,
		Items:    repo,
		Locker:   redisClient,
		LockTTL:  time.Minute,
	}
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	router := routes.NewRouter(cfg, logger.Nop(), db.NewFromConn(conn), redisClient, nil, deps)

	return &fixture{router: router, conn: conn, repo: repo, redis: redisClient, order: order, product: product}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1/admin/orders/"+f.order.ID.String()+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) stored(t *testing.T) (*models.Order, []*models.OrderLineItem) {
	t.Helper()
	ctx := context.Background()
	order, err := f.repo.FindOrder(ctx, f.order.ID)
	require.NoError(t, err)
	items, err := f.repo.ListItems(ctx, f.order.ID)
	require.NoError(t, err)
	return order, items
}

func decodePriced(t *testing.T, w *httptest.ResponseRecorder) pricedEnvelope {
	t.Helper()
	var env pricedEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env.Error
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: want %s, got %s", field, want, got.StringFixed(2))
}

func TestRecalculateWithoutPersistLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/recalculate", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodePriced(t, w)
	assertMoney(t, "32.00", env.Data.Order.Total, "total")
	assertMoney(t, "2.00", env.Data.Order.GoodsTax, "goods_tax")
	assert.Len(t, env.Data.Items, 2)
	assert.Empty(t, env.Data.DiscountsToken)

	stored, _ := f.stored(t)
	assert.True(t, stored.Total.IsZero(), "recalculate without persist must not write")
}

func TestRecalculatePersist(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/recalculate", map[string]any{"persist": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, _ := f.stored(t)
	assertMoney(t, "32.00", stored.Total, "stored total")
}

func TestSessionEditAndSave(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session struct {
		Data deferred.Session `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&session))
	key := session.Data.Key
	require.NotEmpty(t, key)
	require.Len(t, session.Data.Items, 2)

	w = f.do(t, http.MethodPost, "/items", map[string]any{"session_key": key, "product_id": f.product.ID.String(), "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPatch, "/items/"+session.Data.Items[1].ID.String(), map[string]any{"session_key": key, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// staged: 2 x 10.00 + 2 x 5.00 + 1 x 10.00 = 40.00, tax 3.20, shipping 5.00
	w = f.do(t, http.MethodPost, "/recalculate", map[string]any{"session_key": key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertMoney(t, "48.20", decodePriced(t, w).Data.Order.Total, "staged total")

	_, items := f.stored(t)
	assert.Len(t, items, 2, "staged edits must not reach the database before save")

	w = f.do(t, http.MethodPost, "/save", map[string]any{"session_key": key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, items := f.stored(t)
	assertMoney(t, "48.20", stored.Total, "stored total")
	require.Len(t, items, 3)
	assert.Equal(t, 2, items[1].Quantity)

	w = f.do(t, http.MethodPost, "/recalculate", map[string]any{"session_key": key})
	assert.Equal(t, http.StatusNotFound, w.Code, "session is discarded after save")
}

func TestRemoveItemAndDiscardSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var session struct {
		Data deferred.Session `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&session))
	key := session.Data.Key

	w = f.do(t, http.MethodDelete, "/items/"+session.Data.Items[0].ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "session_key is required")

	w = f.do(t, http.MethodDelete, "/items/"+session.Data.Items[0].ID.String()+"?session_key="+key, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), session.Data.Items[1].ID.String())
	assert.NotContains(t, w.Body.String(), session.Data.Items[0].ID.String())

	w = f.do(t, http.MethodDelete, "/session?session_key="+key, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/recalculate", map[string]any{"session_key": key})
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, items := f.stored(t)
	assert.Len(t, items, 2)
}

func TestManualDiscountThenSaveWithToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/manual-discount", map[string]any{"value": "20%"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decodePriced(t, w)
	assertMoney(t, "26.60", env.Data.Order.Total, "total")
	assertMoney(t, "5.00", env.Data.Order.Discount, "discount")
	assertMoney(t, "5.00", env.Data.ManualDiscount.Applied, "applied")
	assert.True(t, env.Data.ManualDiscount.Percent)
	require.NotEmpty(t, env.Data.DiscountsToken)

	stored, _ := f.stored(t)
	assert.True(t, stored.Total.IsZero(), "manual discount preview must not write")

	w = f.do(t, http.MethodPost, "/save", map[string]any{"discounts_token": env.Data.DiscountsToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, items := f.stored(t)
	assertMoney(t, "26.60", stored.Total, "stored total")
	assertMoney(t, "5.00", stored.Discount, "stored discount")
	assertMoney(t, "2.00", items[0].Discount, "widget per-unit discount")
	assertMoney(t, "1.00", items[1].Discount, "gadget per-unit discount")
}

func TestManualDiscountRejectsBadValue(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/manual-discount", map[string]any{"value": "ten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	w = f.do(t, http.MethodPost, "/manual-discount", map[string]any{"value": "30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "25.00")
}

func TestSaveRejectsWhileLocked(t *testing.T) {
	f := newFixture(t)

	ok, err := f.redis.AcquireLock(context.Background(), "order:"+f.order.ID.String(), "another-request", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	w := f.do(t, http.MethodPost, "/save", map[string]any{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, w).Code)

	require.NoError(t, f.redis.ReleaseLock(context.Background(), "order:"+f.order.ID.String(), "another-request"))
	w = f.do(t, http.MethodPost, "/save", map[string]any{})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestClosedOrderCannotBeEdited(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", f.order.ID).Update("status", models.OrderStatusCompleted).Error)

	w := f.do(t, http.MethodPost, "/session", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/save", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "STATE_CONFLICT", decodeError(t, w).Code)
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.order.ID = uuid.New()

	w := f.do(t, http.MethodPost, "/recalculate", map[string]any{})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", decodeError(t, w).Message)
}

package deferred

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgredis "github.com/angelmondragon/orderdesk-backend/pkg/redis"
	"github.com/angelmondragon/orderdesk-backend/pkg/types"
)

func sampleSession() *Session {
	return &Session{
		Key:     "sess-1",
		OrderID: uuid.New(),
		Items: []*models.OrderLineItem{
			{
				ID:           uuid.New(),
				Name:         "Widget",
				Quantity:     2,
				UnitPrice:    decimal.RequireFromString("10.00"),
				Discount:     decimal.RequireFromString("1.25"),
				TaxBreakdown: types.TaxBuckets{"sales_tax": decimal.RequireFromString("1.23")},
			},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewRedisStore(pkgredis.NewFromRaw(raw), ttl), mr
}

func TestMemoryStoreRoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	session := sampleSession()
	require.NoError(t, store.Save(ctx, session))

	session.Items[0].Quantity = 99
	session.Items[0].TaxBreakdown["sales_tax"] = decimal.Zero

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Items[0].Quantity)
	assert.True(t, loaded.Items[0].TaxBreakdown["sales_tax"].Equal(decimal.RequireFromString("1.23")))

	loaded.Items[0].Quantity = 5
	again, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
}

func TestMemoryStoreExpiresAndDiscards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, sampleSession()))
	now = now.Add(2 * time.Minute)
	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, sampleSession()))
	require.NoError(t, store.Discard(ctx, "sess-1"))
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Error(t, store.Save(ctx, &Session{}))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)
	session := sampleSession()
	require.NoError(t, store.Save(ctx, session))

	assert.True(t, mr.Exists("od:deferred:sess-1"))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.OrderID, loaded.OrderID)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.Items[0].Discount.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, loaded.Items[0].TaxBreakdown["sales_tax"].Equal(decimal.RequireFromString("1.23")))

	require.NoError(t, store.Discard(ctx, "sess-1"))
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, store.Save(ctx, sampleSession()))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreLoadSlidesTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, store.Save(ctx, sampleSession()))

	for i := 0; i < 3; i++ {
		mr.FastForward(45 * time.Second)
		_, err := store.Load(ctx, "sess-1")
		require.NoError(t, err, "read %d", i)
	}
	assert.Equal(t, time.Minute, mr.TTL("od:deferred:sess-1"))
}

func TestMemoryStoreLoadSlidesTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(ctx, sampleSession()))

	for i := 0; i < 3; i++ {
		now = now.Add(45 * time.Second)
		_, err := store.Load(ctx, "sess-1")
		require.NoError(t, err, "read %d", i)
	}
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("od:deferred:bad", "{not json"))

	_, err := store.Load(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

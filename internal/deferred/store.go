package deferred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

// ErrSessionNotFound is returned when a session key is unknown or expired.
var ErrSessionNotFound = errors.New("deferred session not found")

// Session is the staged, uncommitted item list of one order edit. Items fully
// replace the persisted item set while the session is open.
type Session struct {
	Key       string                  `json:"key"`
	OrderID   uuid.UUID               `json:"order_id"`
	Items     []*models.OrderLineItem `json:"items"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (s *Session) clone() *Session {
	out := *s
	out.Items = cloneItems(s.Items)
	return &out
}

func cloneItems(items []*models.OrderLineItem) []*models.OrderLineItem {
	out := make([]*models.OrderLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}

// Store keeps sessions by key. Implementations hand out copies so callers
// never share item pointers across requests.
type Store interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Discard(ctx context.Context, key string) error
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory with the same sliding expiry
// as RedisStore. Suitable for a single API instance and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.ttl > 0 && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrSessionNotFound
	}
	entry.expiresAt = m.now().Add(m.ttl)
	m.entries[key] = entry
	return entry.session.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, session *Session) error {
	if session == nil || session.Key == "" {
		return errors.New("session key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[session.Key] = memoryEntry{
		session:   session.clone(),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) Discard(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
	DeferredSessionKey(sessionKey string) string
}

// RedisStore keeps sessions as JSON documents in Redis with a sliding TTL:
// every load or save pushes expiry out again.
type RedisStore struct {
	client kv
	ttl    time.Duration
}

func NewRedisStore(client kv, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Session, error) {
	redisKey := r.client.DeferredSessionKey(key)
	raw, err := r.client.Get(ctx, redisKey)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load deferred session: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode deferred session: %w", err)
	}
	if err := r.client.Touch(ctx, redisKey, r.ttl); err != nil {
		return nil, fmt.Errorf("refresh deferred session: %w", err)
	}
	return &session, nil
}

func (r *RedisStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.Key == "" {
		return errors.New("session key is required")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode deferred session: %w", err)
	}
	if err := r.client.Set(ctx, r.client.DeferredSessionKey(session.Key), string(raw), r.ttl); err != nil {
		return fmt.Errorf("save deferred session: %w", err)
	}
	return nil
}

func (r *RedisStore) Discard(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.client.DeferredSessionKey(key)); err != nil {
		return fmt.Errorf("discard deferred session: %w", err)
	}
	return nil
}

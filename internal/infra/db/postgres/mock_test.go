//go:build !integration

package postgres

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	red "telegram-ai-autoposter/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPostRepo mocks the database repository that the decorator wraps.
type mockInnerPostRepo struct {
	CreateFunc      func(ctx context.Context, tx repository.Tx, p *model.Post) error
	GetByIDFunc     func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error)
	ListByOwnerFunc func(ctx context.Context, tx repository.Tx, ownerID int64, limit int) ([]*model.Post, error)
	UpdateFunc      func(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) error
}

func (m *mockInnerPostRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) error {
	return m.CreateFunc(ctx, tx, p)
}
func (m *mockInnerPostRepo) GetByID(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
	return m.GetByIDFunc(ctx, tx, ownerID, id)
}
func (m *mockInnerPostRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64, limit int) ([]*model.Post, error) {
	return m.ListByOwnerFunc(ctx, tx, ownerID, limit)
}
func (m *mockInnerPostRepo) Update(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) error {
	return m.UpdateFunc(ctx, tx, p, expected)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// memRedis is a map-backed RedisClient. Expirations are recorded, not enforced.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

var _ red.RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttls[key] = expiration
	return nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = expiration
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }
func (m *memRedis) Close() error                   { return nil }

func (m *memRedis) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memRedis) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

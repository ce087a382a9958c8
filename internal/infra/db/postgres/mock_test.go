//go:build !integration

package postgres

import (
	"context"
	"time"

	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
	red "typing-premium-payments/internal/infra/redis"
)

// mockInnerUserRepo mocks the database layer behind the cache decorator.
type mockInnerUserRepo struct {
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	SavePremiumFunc           func(ctx context.Context, tx repository.Tx, u *model.User) error
	ListAdminIDsFunc          func(ctx context.Context, tx repository.Tx) ([]string, error)
	DemoteExpiredPremiumsFunc func(ctx context.Context, tx repository.Tx, now time.Time, base model.Quotas) (int, error)
}

var _ repository.UserRepository = &mockInnerUserRepo{}

func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) SavePremium(ctx context.Context, tx repository.Tx, u *model.User) error {
	return m.SavePremiumFunc(ctx, tx, u)
}
func (m *mockInnerUserRepo) ListAdminIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	return m.ListAdminIDsFunc(ctx, tx)
}
func (m *mockInnerUserRepo) DemoteExpiredPremiums(ctx context.Context, tx repository.Tx, now time.Time, base model.Quotas) (int, error) {
	return m.DemoteExpiredPremiumsFunc(ctx, tx, now, base)
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
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return false, nil
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
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key string, value string) (bool, error) {
	return false, nil
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

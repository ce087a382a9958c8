package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/metrics"
	red "typing-premium-payments/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

const adminIDsKey = "users:admins"

// userRepoCacheDecorator caches the admin roster used for notification fan-out.
// Premium state is never cached: it is read under row locks.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "UserRepoCache").Logger()
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   &l,
	}
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return d.inner.FindByID(ctx, tx, id)
}

// SavePremium drops the cached roster; a save may race with an admin flag change.
func (d *userRepoCacheDecorator) SavePremium(ctx context.Context, tx repository.Tx, u *model.User) error {
	if err := d.inner.SavePremium(ctx, tx, u); err != nil {
		return err
	}
	if u.IsAdmin {
		_ = d.cache.Del(ctx, adminIDsKey)
	}
	return nil
}

func (d *userRepoCacheDecorator) ListAdminIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	if tx != nil {
		metrics.IncAdminRosterLookup(metrics.RosterBypass)
		return d.inner.ListAdminIDs(ctx, tx)
	}

	val, err := d.cache.Get(ctx, adminIDsKey)
	if err == nil {
		var ids []string
		if json.Unmarshal([]byte(val), &ids) == nil {
			metrics.IncAdminRosterLookup(metrics.RosterHit)
			return ids, nil
		}
	} else if err != redis.Nil {
		d.log.Warn().Err(err).Msg("admin roster cache read failed")
	}

	metrics.IncAdminRosterLookup(metrics.RosterMiss)
	ids, err := d.inner.ListAdminIDs(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(ids); err == nil {
		_ = d.cache.Set(ctx, adminIDsKey, b, d.ttl)
	}
	return ids, nil
}

func (d *userRepoCacheDecorator) DemoteExpiredPremiums(ctx context.Context, tx repository.Tx, now time.Time, base model.Quotas) (int, error) {
	return d.inner.DemoteExpiredPremiums(ctx, tx, now, base)
}

// Package ratelimit throttles authentication attempts per principal
// identity. Only failures consume the budget: a successful login calls
// Forgive to hand the slot back.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/metrics"
	"github.com/iota-uz/varda/pkg/serrors"
)

type LoginLimiter struct {
	limiter *limiter.Limiter
}

func NewLoginLimiter(opts configuration.RateLimitOptions) (*LoginLimiter, error) {
	period, err := time.ParseDuration(opts.LoginPeriod)
	if err != nil {
		return nil, err
	}
	rate := limiter.Rate{Period: period, Limit: opts.LoginAttempts}

	var store limiter.Store
	if opts.Storage == "redis" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		store, err = sredis.NewStoreWithOptions(redis.NewClient(redisOpts), limiter.StoreOptions{
			Prefix: "varda:ratelimit",
		})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStore()
	}

	return &LoginLimiter{limiter: limiter.New(store, rate)}, nil
}

// RecordFailure consumes one slot for the identity and reports whether
// the budget is now exhausted.
func (l *LoginLimiter) RecordFailure(ctx context.Context, identity string) error {
	lctx, err := l.limiter.Get(ctx, identity)
	if err != nil {
		return err
	}
	if lctx.Reached {
		metrics.Use().LoginThrottled.Inc()
		return serrors.Throttled(time.Until(time.Unix(lctx.Reset, 0)))
	}
	return nil
}

// Check peeks at the budget without consuming it; used before attempting
// authentication so a throttled identity fails fast.
func (l *LoginLimiter) Check(ctx context.Context, identity string) error {
	lctx, err := l.limiter.Peek(ctx, identity)
	if err != nil {
		return err
	}
	if lctx.Reached {
		metrics.Use().LoginThrottled.Inc()
		return serrors.Throttled(time.Until(time.Unix(lctx.Reset, 0)))
	}
	return nil
}

// Forgive resets the identity's budget after a successful authentication.
func (l *LoginLimiter) Forgive(ctx context.Context, identity string) error {
	_, err := l.limiter.Reset(ctx, identity)
	return err
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix      = "varda:visible:"
	redisGroupKeyPrefix = "varda:visible:group:"
)

// Redis is the shared VisibleIDs backend for multi-worker deployments.
// Each entry keeps a reverse index from group name to the cache keys it
// contributed to, so group invalidation stays O(affected keys).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logrus.Entry) *Redis {
	return &Redis{client: client, ttl: ttl, log: log}
}

func (r *Redis) Get(ctx context.Context, principalOID, contentType string) ([]int64, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+cacheKey(principalOID, contentType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.WithError(err).Warn("visible cache read failed")
		}
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (r *Redis) Set(ctx context.Context, principalOID, contentType string, groupNames []string, ids []int64) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	key := redisKeyPrefix + cacheKey(principalOID, contentType)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, raw, r.ttl)
	pipe.SAdd(ctx, redisKeyPrefix+"principal:"+principalOID, key)
	pipe.Expire(ctx, redisKeyPrefix+"principal:"+principalOID, r.ttl)
	for _, g := range groupNames {
		pipe.SAdd(ctx, redisGroupKeyPrefix+g, key)
		pipe.Expire(ctx, redisGroupKeyPrefix+g, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).Warn("visible cache write failed")
	}
}

func (r *Redis) InvalidatePrincipal(ctx context.Context, principalOID string) {
	r.dropMembers(ctx, redisKeyPrefix+"principal:"+principalOID)
}

func (r *Redis) InvalidateGroups(ctx context.Context, groupNames []string) {
	for _, g := range groupNames {
		r.dropMembers(ctx, redisGroupKeyPrefix+g)
	}
}

func (r *Redis) dropMembers(ctx context.Context, setKey string) {
	keys, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.WithError(err).Warn("visible cache invalidation failed")
		}
		return
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.log.WithError(err).Warn("visible cache invalidation failed")
		}
	}
	_ = r.client.Del(ctx, setKey).Err()
}

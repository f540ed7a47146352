package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.load(nil))

	assert.Equal(t, "varda", c.Database.Name)
	assert.Equal(t, int64(5), c.RateLimit.LoginAttempts)
	assert.Equal(t, "1h", c.RateLimit.LoginPeriod)
	assert.Equal(t, 60*time.Second, c.Cache.TTL)
	assert.Equal(t, 3, c.Upstream.MaxAttempts)
	assert.Equal(t, "1.2.246.562.10.00000000001", c.OpintopolkuOID)
	assert.NotNil(t, c.Logger())
}

func TestRateLimitValidation(t *testing.T) {
	opts := RateLimitOptions{LoginAttempts: 0, LoginPeriod: "1h", Storage: "memory"}
	assert.Error(t, opts.Validate())

	opts = RateLimitOptions{LoginAttempts: 5, LoginPeriod: "bogus", Storage: "memory"}
	assert.Error(t, opts.Validate())

	opts = RateLimitOptions{LoginAttempts: 5, LoginPeriod: "1h", Storage: "redis"}
	assert.Error(t, opts.Validate(), "redis storage requires a url")

	opts = RateLimitOptions{LoginAttempts: 5, LoginPeriod: "1h", Storage: "redis", RedisURL: "redis://localhost:6379"}
	assert.NoError(t, opts.Validate())
}

func TestCacheValidation(t *testing.T) {
	opts := CacheOptions{TTL: -time.Second, Storage: "memory"}
	assert.Error(t, opts.Validate())

	opts = CacheOptions{TTL: time.Minute, Storage: "postgres"}
	assert.Error(t, opts.Validate())
}

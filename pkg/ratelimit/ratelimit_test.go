package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/serrors"
)

func newTestLimiter(t *testing.T) *LoginLimiter {
	t.Helper()
	l, err := NewLoginLimiter(configuration.RateLimitOptions{
		Enabled:       true,
		LoginAttempts: 3,
		LoginPeriod:   "1h",
		Storage:       "memory",
	})
	require.NoError(t, err)
	return l
}

func TestBudgetExhaustion(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordFailure(ctx, "1.2.246.562.24.99"))
	}
	err := l.RecordFailure(ctx, "1.2.246.562.24.99")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindThrottled))
}

func TestCheckDoesNotConsume(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Check(ctx, "1.2.246.562.24.88"))
	}
}

func TestForgiveResetsBudget(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordFailure(ctx, "id"))
	}
	require.NoError(t, l.Forgive(ctx, "id"))
	assert.NoError(t, l.RecordFailure(ctx, "id"))
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordFailure(ctx, "a"))
	}
	assert.NoError(t, l.RecordFailure(ctx, "b"))
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(0, time.Minute))
	assert.Equal(t, time.Second, Backoff(1, time.Minute))
	assert.Equal(t, 2*time.Second, Backoff(2, time.Minute))
	assert.Equal(t, 4*time.Second, Backoff(3, time.Minute))
	assert.Equal(t, 5*time.Second, Backoff(10, 5*time.Second), "capped at max")
}

func TestDoStopsAfterBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoSucceedsMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoPermanentShortCircuits(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Do(context.Background(), Options{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		calls++
		return Permanent{Err: permanent}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, permanent, err)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Options{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		t.Fatal("should not run after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

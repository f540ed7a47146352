package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestMemoryGetSet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Minute, clock)
	ctx := context.Background()

	_, ok := m.Get(ctx, "1.2.246.562.24.1", "varhaiskasvatus.lapsi")
	assert.False(t, ok)

	m.Set(ctx, "1.2.246.562.24.1", "varhaiskasvatus.lapsi",
		[]string{"VARDA-TALLENTAJA_1.2.246.562.10.111"}, []int64{1, 2, 3})

	ids, ok := m.Get(ctx, "1.2.246.562.24.1", "varhaiskasvatus.lapsi")
	assert.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestMemoryTTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Minute, clock)
	ctx := context.Background()

	m.Set(ctx, "p", "ct", nil, []int64{1})
	clock.Advance(61 * time.Second)

	_, ok := m.Get(ctx, "p", "ct")
	assert.False(t, ok)
}

func TestMemoryInvalidatePrincipal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Minute, clock)
	ctx := context.Background()

	m.Set(ctx, "p1", "ct", nil, []int64{1})
	m.Set(ctx, "p2", "ct", nil, []int64{2})
	m.InvalidatePrincipal(ctx, "p1")

	_, ok := m.Get(ctx, "p1", "ct")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "p2", "ct")
	assert.True(t, ok)
}

func TestMemoryInvalidateGroups(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(time.Minute, clock)
	ctx := context.Background()

	m.Set(ctx, "p1", "ct", []string{"VARDA-TALLENTAJA_1.2.3"}, []int64{1})
	m.Set(ctx, "p2", "ct", []string{"VARDA-KATSELIJA_4.5.6"}, []int64{2})

	m.InvalidateGroups(ctx, []string{"VARDA-TALLENTAJA_1.2.3"})

	_, ok := m.Get(ctx, "p1", "ct")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "p2", "ct")
	assert.True(t, ok)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	assert.NoError(t, m.Set(ctx, "k", "report", 0))
	got, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "report", got)

	assert.NoError(t, m.Delete(ctx, "k"))
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.NoError(t, m.Set(ctx, "k", "report", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStatKey(t *testing.T) {
	assert.Equal(t, "compare:a:b", StatKey("a", "b"))
	assert.NotEqual(t, StatKey("a", "b"), StatKey("b", "a"))
}

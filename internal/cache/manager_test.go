package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/config"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, "test:", time.Minute, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, mr
}

func TestManager_SetGetJSON(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	type payload struct {
		Keyword string  `json:"keyword"`
		Volume  float64 `json:"volume"`
	}
	in := payload{Keyword: "golang seo", Volume: 320}
	require.NoError(t, m.SetJSON(ctx, "kw", in))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "kw", &out))
	assert.Equal(t, in, out)
}

func TestManager_GetJSON_Miss(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	var out any
	err := m.GetJSON(context.Background(), "absent", &out)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.SetJSON(ctx, "k", "v"))
	require.NoError(t, m.Delete(ctx, "k"))

	var out string
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "k", &out)))
}

func TestManager_TTLApplied(t *testing.T) {
	t.Parallel()

	m, mr := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.SetJSON(ctx, "ttl", "v"))

	mr.FastForward(2 * time.Minute)

	var out string
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "ttl", &out)), "entry must expire after the default TTL")
}

func TestManager_KeyPrefixIsolation(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	a, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, "a:", time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, "b:", time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.SetJSON(ctx, "k", "from-a"))

	var out string
	assert.True(t, IsCacheMiss(b.GetJSON(ctx, "k", &out)))
}

func TestManager_CloseRejectsPing(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.Close())
	assert.Error(t, m.Ping(context.Background()))
	assert.NoError(t, m.Close(), "double close is safe")
}

func TestNewManager_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := NewManager(config.RedisConfig{Addr: "127.0.0.1:1"}, "x:", time.Minute, zap.NewNop())
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// ToolResultCache
// ---------------------------------------------------------------------------

func TestToolResultCache_RoundTrip(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	c := NewToolResultCache(m, zap.NewNop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "fetch:abc")
	assert.False(t, ok)

	c.Set(ctx, "fetch:abc", map[string]any{"pages": float64(3)})
	v, ok := c.Get(ctx, "fetch:abc")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"pages": float64(3)}, v)
}

func TestToolResultCache_RedisOutageDegradesToMiss(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	m, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, "x:", time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	c := NewToolResultCache(m, zap.NewNop())
	ctx := context.Background()
	c.Set(ctx, "k", "v")

	mr.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "an unreachable cache must read as a miss")
	c.Set(ctx, "k2", "v2") // must not panic
}

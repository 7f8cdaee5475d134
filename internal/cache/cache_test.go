package cache

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rez-core/internal/types"
)

func testOptions() types.CacheOptions {
	return types.CacheOptions{
		Hot:                 types.TierOptions{MaxEntries: 64, Policy: types.EvictionLRU},
		Warm:                types.TierOptions{MaxEntries: 256, Policy: types.EvictionLFU},
		Shards:              4,
		PromotionThreshold:  2,
		MaintenanceInterval: time.Hour, // keep maintenance quiet during tests
	}
}

func TestPutGet(t *testing.T) {
	c := New(testOptions(), nil)
	defer c.Close()

	c.Put("alpha", "value-a", 8)
	value, ok := c.Get("alpha")
	require.True(t, ok)
	require.Equal(t, "value-a", value)

	// Idempotent replace.
	c.Put("alpha", "value-b", 8)
	value, ok = c.Get("alpha")
	require.True(t, ok)
	require.Equal(t, "value-b", value)

	_, ok = c.Get("missing")
	require.False(t, ok)

	stats := c.Stats()
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}

func TestHotCapacityHolds(t *testing.T) {
	opts := testOptions()
	opts.Hot.MaxEntries = 16
	c := New(opts, nil)
	defer c.Close()

	for i := 0; i < 200; i++ {
		c.Put(fmt.Sprintf("key-%03d", i), i, 8)
		require.LessOrEqual(t, c.HotEntryCount(), opts.Hot.MaxEntries)
	}
}

func TestEvictionDemotesToWarm(t *testing.T) {
	opts := testOptions()
	opts.Hot.MaxEntries = 8
	c := New(opts, nil)
	defer c.Close()

	for i := 0; i < 64; i++ {
		c.Put(fmt.Sprintf("key-%03d", i), i, 8)
	}
	stats := c.Stats()
	require.Greater(t, stats.Demotions, uint64(0))
	require.Equal(t, 64, stats.HotEntries+stats.WarmEntries)

	// Every key is still reachable through the warm tier.
	for i := 0; i < 64; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%03d", i))
		require.True(t, ok, "key-%03d", i)
	}
}

func TestWarmPromotion(t *testing.T) {
	opts := testOptions()
	opts.Hot.MaxEntries = 4
	opts.PromotionThreshold = 2
	c := New(opts, nil)
	defer c.Close()

	// Push "cold" out of hot into warm.
	c.Put("cold", "v", 8)
	for i := 0; i < 32; i++ {
		c.Put(fmt.Sprintf("filler-%02d", i), i, 8)
	}

	// Repeated warm hits clear the threshold and promote.
	for i := 0; i < 4; i++ {
		_, ok := c.Get("cold")
		require.True(t, ok)
	}
	require.Greater(t, c.Stats().Promotions, uint64(0))
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(testOptions(), nil)
	defer c.Close()

	c.Put("alpha", 1, 8)
	c.Put("beta", 2, 8)
	c.Invalidate("alpha")
	_, ok := c.Get("alpha")
	require.False(t, ok)
	_, ok = c.Get("beta")
	require.True(t, ok)

	c.Clear()
	_, ok = c.Get("beta")
	require.False(t, ok)
	require.Equal(t, 0, c.Stats().HotEntries+c.Stats().WarmEntries)
}

// A uniform workload whose working set fits the hot tier hits ≥ 90%.
func TestHitRateUnderUniformWorkload(t *testing.T) {
	opts := testOptions()
	opts.Hot.MaxEntries = 256
	c := New(opts, nil)
	defer c.Close()

	const workingSet = 64
	for i := 0; i < workingSet; i++ {
		c.Put(fmt.Sprintf("ws-%03d", i), i, 16)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("ws-%03d", rng.Intn(workingSet))
		_, _ = c.Get(key)
	}
	stats := c.Stats()
	total := stats.Hits + stats.Misses
	hitRate := float64(stats.Hits) / float64(total)
	require.GreaterOrEqual(t, hitRate, 0.90, "hit rate %.3f", hitRate)
}

func TestPreheaterRepopulatesRecurringKeys(t *testing.T) {
	loads := 0
	c := New(testOptions(), func(_ context.Context, key string) (any, int64, bool) {
		loads++
		return "reloaded:" + key, 8, true
	})
	defer c.Close()

	// Record a recurring access pattern for an absent key.
	for i := 0; i < 6; i++ {
		_, _ = c.Get("hotkey")
	}
	c.preheater.runOnce()
	require.Equal(t, 1, loads)
	value, ok := c.Get("hotkey")
	require.True(t, ok)
	require.Equal(t, "reloaded:hotkey", value)
}

func TestTunerJournals(t *testing.T) {
	opts := testOptions()
	opts.Hot.MaxEntries = 512
	opts.HotMinEntries = 64
	opts.HotMaxEntries = 1024
	c := New(opts, nil)
	defer c.Close()

	// Window 1: poor hit rate grows the hot capacity.
	for i := 0; i < 100; i++ {
		_, _ = c.Get(fmt.Sprintf("absent-%d", i))
	}
	c.tuner.runOnce()
	journal := c.tuner.Journal()
	require.NotEmpty(t, journal)
	require.Equal(t, "hot_capacity", journal[0].Parameter)
	require.Greater(t, journal[0].To, journal[0].From)

	// Window 2: adjustments keep being journaled while the hit rate
	// stays poor.
	before := len(journal)
	for i := 0; i < 200; i++ {
		_, _ = c.Get(fmt.Sprintf("absent2-%d", i))
	}
	c.tuner.runOnce()
	require.GreaterOrEqual(t, len(c.tuner.Journal()), before)
}

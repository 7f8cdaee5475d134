package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarmSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.bin")
	opts := testOptions()
	opts.PersistPath = path

	c := New(opts, nil)
	c.Put("blob-a", []byte("payload-a"), 9)
	c.Put("blob-b", []byte("payload-b"), 9)
	c.Put("rich", struct{ X int }{X: 1}, 8) // not persistable, silently skipped

	// Demote everything so the snapshot sees it in warm.
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, e := range shard.entries {
			delete(shard.entries, key)
			c.warm.entries[e.key] = e
		}
		shard.mu.Unlock()
	}
	c.Close()

	reopened := New(opts, nil)
	defer reopened.Close()
	value, ok := reopened.Get("blob-a")
	require.True(t, ok)
	require.Equal(t, []byte("payload-a"), value)
	value, ok = reopened.Get("blob-b")
	require.True(t, ok)
	require.Equal(t, []byte("payload-b"), value)
	_, ok = reopened.Get("rich")
	require.False(t, ok)
}

func TestCorruptSnapshotDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a snapshot"), 0o644))

	opts := testOptions()
	opts.PersistPath = path
	c := New(opts, nil)
	defer c.Close()

	// Construction survives and the cache works cold.
	require.Equal(t, 0, c.Stats().WarmEntries)
	c.Put("alpha", 1, 8)
	_, ok := c.Get("alpha")
	require.True(t, ok)
}

func TestTruncatedSnapshotDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.bin")
	opts := testOptions()
	opts.PersistPath = path

	c := New(opts, nil)
	c.Put("blob", []byte("payload"), 7)
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, e := range shard.entries {
			delete(shard.entries, key)
			c.warm.entries[e.key] = e
		}
		shard.mu.Unlock()
	}
	c.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0o644))

	reopened := New(opts, nil)
	defer reopened.Close()
	require.Equal(t, 0, reopened.Stats().WarmEntries)
}

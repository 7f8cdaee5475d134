package cache

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Warm tier snapshot layout:
//
//	[magic u32][version u16][entry-count u32]
//	entry: [key-len u32][key bytes][value-len u32][value bytes][meta u64]
//
// Only []byte values are persistable; richer values are skipped. The
// meta word carries the access count. Persistence is best-effort: a
// corrupt or unreadable file is discarded and logged, never fatal.
const (
	snapshotMagic   uint32 = 0x52455a43 // "REZC"
	snapshotVersion uint16 = 1
)

func (c *TieredCache) saveWarmSnapshot(path string) {
	c.warm.mu.RLock()
	persistable := make([]*entry, 0, len(c.warm.entries))
	for _, e := range c.warm.entries {
		if _, ok := e.value.([]byte); ok {
			persistable = append(persistable, e)
		}
	}
	c.warm.mu.RUnlock()
	sort.Slice(persistable, func(i, j int) bool { return persistable[i].key < persistable[j].key })

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, snapshotMagic)
	_ = binary.Write(&buf, binary.LittleEndian, snapshotVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(persistable)))
	for _, e := range persistable {
		value := e.value.([]byte)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.key)))
		buf.WriteString(e.key)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(value)))
		buf.Write(value)
		_ = binary.Write(&buf, binary.LittleEndian, e.accessCount.Load())
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("warm snapshot write failed")
	}
}

func (c *TieredCache) loadWarmSnapshot(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("warm snapshot read failed")
		}
		return
	}
	entries, ok := decodeSnapshot(data, c.clock())
	if !ok {
		log.Warn().Str("path", path).Msg("warm snapshot corrupt, discarding")
		_ = os.Remove(path)
		return
	}
	c.warm.mu.Lock()
	for _, e := range entries {
		if len(c.warm.entries) >= c.opts.Warm.MaxEntries {
			break
		}
		c.warm.entries[e.key] = e
		c.bytes.Add(e.size)
	}
	c.warm.mu.Unlock()
}

func decodeSnapshot(data []byte, now time.Time) ([]*entry, bool) {
	r := bytes.NewReader(data)
	var magic uint32
	var version uint16
	var count uint32
	if binary.Read(r, binary.LittleEndian, &magic) != nil || magic != snapshotMagic {
		return nil, false
	}
	if binary.Read(r, binary.LittleEndian, &version) != nil || version != snapshotVersion {
		return nil, false
	}
	if binary.Read(r, binary.LittleEndian, &count) != nil {
		return nil, false
	}
	entries := make([]*entry, 0, count)
	for i := uint32(0); i < count; i++ {
		key, ok := readBlob(r)
		if !ok {
			return nil, false
		}
		value, ok := readBlob(r)
		if !ok {
			return nil, false
		}
		var meta uint64
		if binary.Read(r, binary.LittleEndian, &meta) != nil {
			return nil, false
		}
		e := &entry{key: string(key), value: value, size: int64(len(value)), insertedAt: now}
		e.lastAccess.Store(now.UnixNano())
		e.accessCount.Store(meta)
		entries = append(entries, e)
	}
	return entries, true
}

func readBlob(r *bytes.Reader) ([]byte, bool) {
	var n uint32
	if binary.Read(r, binary.LittleEndian, &n) != nil {
		return nil, false
	}
	if int64(n) > int64(r.Len()) {
		return nil, false
	}
	blob := make([]byte, n)
	if _, err := r.Read(blob); err != nil && n > 0 {
		return nil, false
	}
	return blob, true
}

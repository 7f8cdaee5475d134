// Package ports declares the interfaces the application layer wires
// adapters and infrastructure through.
package ports

import "rez-core/internal/types"

// CachePort is the multi-tier cache contract. Get must not block
// concurrent gets; Put may briefly block concurrent puts to the same
// shard.
type CachePort interface {
	Get(key string) (any, bool)
	Put(key string, value any, size int64)
	Invalidate(key string)
	Clear()
	Stats() types.CacheStats
}

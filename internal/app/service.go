// Package app wires the core pipeline together: scan, solve, build
// context, cache the result. It owns the process-wide cache handle;
// there are no ambient globals.
package app

import (
	"time"

	"rez-core/internal/adapters"
	"rez-core/internal/cache"
	"rez-core/internal/ports"
	"rez-core/internal/types"
)

// Service is the pipeline orchestrator handle. Create with NewService
// and release with Close so the warm cache snapshot is flushed.
type Service struct {
	Scanner ports.ScannerPort
	Cache   ports.CachePort
	Clock   func() time.Time

	cache *cache.TieredCache
}

// NewService builds a service with the default adapter wiring.
func NewService(cacheOpts types.CacheOptions) *Service {
	tiered := cache.New(cacheOpts, nil)
	return &Service{
		Scanner: adapters.NewScanner(tiered),
		Cache:   tiered,
		Clock:   time.Now,
		cache:   tiered,
	}
}

// Close releases the cache handle, flushing persistence if configured.
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

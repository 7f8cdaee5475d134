package types

import "time"

// SolveOptions controls a single solver invocation. Zero values select
// the documented defaults via Normalize.
type SolveOptions struct {
	Strategy         Strategy         `yaml:"strategy"`
	ConflictStrategy ConflictStrategy `yaml:"conflict_strategy"`
	MaxIterations    int              `yaml:"max_iterations"`
	MaxFails         int              `yaml:"max_fails"`
	ParallelWorkers  int              `yaml:"parallel_workers"`

	// IncludeBuildRequires folds build_requires into the pending set of
	// every expanded package.
	IncludeBuildRequires bool `yaml:"include_build_requires"`

	// Heuristic weights. WeightConflict is forced to zero for final
	// selection under the optimal strategy.
	WeightRemain   float64 `yaml:"weight_remain"`
	WeightDepth    float64 `yaml:"weight_depth"`
	WeightConflict float64 `yaml:"weight_conflict"`

	// Conflict cost table.
	CostVersionConflict  float64 `yaml:"cost_version_conflict"`
	CostPlatformConflict float64 `yaml:"cost_platform_conflict"`
	CostMissingPackage   float64 `yaml:"cost_missing_package"`
	CostCycle            float64 `yaml:"cost_cycle"`

	// TopConflicts bounds how many conflicts an unsolvable report lists.
	TopConflicts int `yaml:"top_conflicts"`
}

// Normalize fills unset fields with defaults and returns the result.
func (o SolveOptions) Normalize() SolveOptions {
	if o.Strategy == "" {
		o.Strategy = StrategyFastest
	}
	if o.ConflictStrategy == "" {
		o.ConflictStrategy = ConflictLatestWins
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10000
	}
	if o.MaxFails <= 0 {
		o.MaxFails = 1000
	}
	if o.ParallelWorkers <= 0 {
		o.ParallelWorkers = 1
	}
	if o.WeightRemain == 0 {
		o.WeightRemain = 1
	}
	if o.WeightDepth == 0 {
		o.WeightDepth = 0.5
	}
	if o.WeightConflict == 0 {
		o.WeightConflict = 1
	}
	if o.CostVersionConflict == 0 {
		o.CostVersionConflict = 50
	}
	if o.CostPlatformConflict == 0 {
		o.CostPlatformConflict = 100
	}
	if o.CostMissingPackage == 0 {
		o.CostMissingPackage = 500
	}
	if o.CostCycle == 0 {
		o.CostCycle = 1000
	}
	if o.TopConflicts <= 0 {
		o.TopConflicts = 10
	}
	return o
}

// ScanOptions bounds a repository scan.
type ScanOptions struct {
	Workers       int   `yaml:"workers"`
	MaxFanout     int   `yaml:"max_fanout"`
	MaxDepth      int   `yaml:"max_depth"`
	MmapThreshold int64 `yaml:"mmap_threshold"`
}

// Normalize fills unset fields with defaults and returns the result.
func (o ScanOptions) Normalize() ScanOptions {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.MaxFanout <= 0 {
		o.MaxFanout = 4096
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 4
	}
	if o.MmapThreshold <= 0 {
		o.MmapThreshold = 64 * 1024
	}
	return o
}

// TierOptions configures one cache tier.
type TierOptions struct {
	MaxEntries int            `yaml:"max_entries"`
	Policy     EvictionPolicy `yaml:"policy"`
	TTL        time.Duration  `yaml:"ttl"`
}

// CacheOptions configures the tiered cache, its preheater, and tuner.
type CacheOptions struct {
	Hot  TierOptions `yaml:"hot"`
	Warm TierOptions `yaml:"warm"`

	Shards             int `yaml:"shards"`
	PromotionThreshold int `yaml:"promotion_threshold"`

	// HotMinEntries/HotMaxEntries bound the tuner's capacity adjustments.
	HotMinEntries int `yaml:"hot_min_entries"`
	HotMaxEntries int `yaml:"hot_max_entries"`

	PreheatRingSize     int           `yaml:"preheat_ring_size"`
	PreheatInterArrival time.Duration `yaml:"preheat_inter_arrival"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`

	// PersistPath, when non-empty, enables best-effort warm tier
	// persistence across handle lifetimes.
	PersistPath string `yaml:"persist_path"`
}

// Normalize fills unset fields with defaults and returns the result.
func (o CacheOptions) Normalize() CacheOptions {
	if o.Hot.MaxEntries <= 0 {
		o.Hot.MaxEntries = 1024
	}
	if o.Hot.Policy == "" {
		o.Hot.Policy = EvictionLRU
	}
	if o.Warm.MaxEntries <= 0 {
		o.Warm.MaxEntries = 8192
	}
	if o.Warm.Policy == "" {
		o.Warm.Policy = EvictionLFU
	}
	if o.Hot.TTL <= 0 {
		o.Hot.TTL = 10 * time.Minute
	}
	if o.Warm.TTL <= 0 {
		o.Warm.TTL = time.Hour
	}
	// Shards stays zero here; the cache resolves it against GOMAXPROCS
	// at construction.
	if o.PromotionThreshold <= 0 {
		o.PromotionThreshold = 3
	}
	if o.HotMinEntries <= 0 {
		o.HotMinEntries = 256
	}
	if o.HotMaxEntries <= 0 {
		o.HotMaxEntries = 16384
	}
	if o.PreheatRingSize <= 0 {
		o.PreheatRingSize = 4096
	}
	if o.PreheatInterArrival <= 0 {
		o.PreheatInterArrival = 5 * time.Second
	}
	if o.MaintenanceInterval <= 0 {
		o.MaintenanceInterval = 15 * time.Second
	}
	return o
}

// PipelineOptions bundles per-invocation settings for the orchestrator.
type PipelineOptions struct {
	Solve SolveOptions `yaml:"solve"`
	Scan  ScanOptions  `yaml:"scan"`
	Shell Shell        `yaml:"shell"`
}

// Normalize fills unset fields with defaults and returns the result.
func (o PipelineOptions) Normalize() PipelineOptions {
	o.Solve = o.Solve.Normalize()
	o.Scan = o.Scan.Normalize()
	if o.Shell == "" {
		o.Shell = ShellBash
	}
	return o
}

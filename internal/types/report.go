package types

import "time"

// Conflict is one obstruction recorded during search. Count accumulates
// how many times the same obstruction was observed.
type Conflict struct {
	Kind    ConflictKind `yaml:"kind"`
	Package string       `yaml:"package"`
	Detail  string       `yaml:"detail"`
	Count   int          `yaml:"count"`
}

// SolveReport summarizes one solver invocation.
type SolveReport struct {
	Status     SolveStatus   `yaml:"status"`
	Iterations int           `yaml:"iterations"`
	PeakStates int           `yaml:"peak_states"`
	Elapsed    time.Duration `yaml:"elapsed"`
	Conflicts  []Conflict    `yaml:"conflicts,omitempty"`

	// BestPartial names the assignments of the most promising partial
	// state when the run stopped at the iteration limit or was cancelled.
	BestPartial []string `yaml:"best_partial,omitempty"`
}

// RootReport is the per-root slice of a scan report.
type RootReport struct {
	Root     string `yaml:"root"`
	Packages int    `yaml:"packages"`
	Failed   int    `yaml:"failed"`
}

// ScanError records one scan failure: a package definition that could
// not be read, parsed or validated, or a root that could not be read.
type ScanError struct {
	Path    string `yaml:"path"`
	Message string `yaml:"message"`
}

// ScanReport summarizes one repository scan.
type ScanReport struct {
	Roots           []RootReport  `yaml:"roots"`
	Packages        int           `yaml:"packages"`
	PeakConcurrency int           `yaml:"peak_concurrency"`
	EnumElapsed     time.Duration `yaml:"enum_elapsed"`
	ParseElapsed    time.Duration `yaml:"parse_elapsed"`
	MmapReads       int           `yaml:"mmap_reads"`
	CacheHits       int           `yaml:"cache_hits"`
	CacheMisses     int           `yaml:"cache_misses"`
	Errors          []ScanError   `yaml:"errors,omitempty"`
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits        uint64 `yaml:"hits"`
	Misses      uint64 `yaml:"misses"`
	Promotions  uint64 `yaml:"promotions"`
	Demotions   uint64 `yaml:"demotions"`
	Evictions   uint64 `yaml:"evictions"`
	Bytes       uint64 `yaml:"bytes"`
	HotEntries  int    `yaml:"hot_entries"`
	WarmEntries int    `yaml:"warm_entries"`
}

// PipelineReport combines the scanner and solver reports for one
// orchestrated resolve.
type PipelineReport struct {
	Scan         ScanReport    `yaml:"scan"`
	Solve        SolveReport   `yaml:"solve"`
	Fingerprint  uint64        `yaml:"fingerprint"`
	ContextReuse bool          `yaml:"context_reuse"`
	Elapsed      time.Duration `yaml:"elapsed"`
}

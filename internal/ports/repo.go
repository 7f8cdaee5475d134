package ports

import (
	"context"

	"rez-core/internal/core"
	"rez-core/internal/types"
)

// RepositoryPort is a scanned package universe. It satisfies the
// solver's repository view and adds the scan surface the orchestrator
// drives.
type RepositoryPort interface {
	core.Repository

	// Report returns the scan report of the last refresh.
	Report() types.ScanReport
}

// ScannerPort discovers packages under one or more repository roots.
type ScannerPort interface {
	Scan(ctx context.Context, roots []string, opts types.ScanOptions) (RepositoryPort, error)
}

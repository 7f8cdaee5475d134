package core

import (
	"strings"

	"rez-core/internal/types"
)

// depthEstimate guesses how deep a requirement chain hangs under a
// package name. Foundation packages sit near the leaves, applications
// near the root. The estimate is monotone and non-negative; a learned
// estimator may replace it as long as that holds.
func depthEstimate(name string) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "core"), strings.Contains(lower, "base"):
		return 1
	case strings.Contains(lower, "plugin"), strings.Contains(lower, "extension"):
		return 3
	case strings.Contains(lower, "app"), strings.Contains(lower, "tool"):
		return 5
	}
	return 2
}

// conflictCost weighs the conflicts a state carries. Not admissible:
// it steers the fastest strategy away from dead ends at the price of
// cost-optimality.
func conflictCost(conflicts []types.Conflict, opts types.SolveOptions) float64 {
	var cost float64
	for _, c := range conflicts {
		switch c.Kind {
		case types.ConflictVersion:
			cost += opts.CostVersionConflict
		case types.ConflictPlatform:
			cost += opts.CostPlatformConflict
		case types.ConflictMissing:
			cost += opts.CostMissingPackage
		case types.ConflictCycle:
			cost += opts.CostCycle
		}
	}
	return cost
}

// heuristic computes h(s) = w_r·|pending| + w_d·depth + w_c·conflicts.
// Only the remaining-count term is admissible on its own; the optimal
// strategy zeroes the conflict weight during final selection and uses
// it for branch ordering only.
func heuristic(s *searchState, opts types.SolveOptions, conflictWeight float64) float64 {
	var hard int
	var depth float64
	for _, p := range s.pending {
		if p.req.Weak || p.req.Conflict {
			continue
		}
		hard++
		if d := depthEstimate(p.req.Name); d > depth {
			depth = d
		}
	}
	h := opts.WeightRemain * float64(hard)
	h += opts.WeightDepth * depth
	h += conflictWeight * conflictCost(s.conflicts, opts)
	return h
}

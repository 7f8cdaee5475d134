// Package policies holds resolution policy decisions that are
// independent of the search machinery: how candidate versions are
// ordered under each conflict strategy.
package policies

import "rez-core/internal/types"

// CandidateInfo carries the per-candidate facts the ordering policies
// look at. Candidates are presented newest-first.
type CandidateInfo struct {
	// SatisfiesWeak reports whether the candidate satisfies every weak
	// requirement currently pending on its package name.
	SatisfiesWeak bool
}

// OrderCandidates returns the preference order as indices into a
// newest-first candidate list.
//
// latest-wins prefers newest, earliest-wins oldest. find-compatible
// prefers newest among candidates that also satisfy the weak
// preferences pending on the name, falling back to the remainder.
func OrderCandidates(strategy types.ConflictStrategy, candidates []CandidateInfo) []int {
	n := len(candidates)
	order := make([]int, 0, n)
	switch strategy {
	case types.ConflictEarliestWins:
		for i := n - 1; i >= 0; i-- {
			order = append(order, i)
		}
	case types.ConflictFindCompatible:
		for i := 0; i < n; i++ {
			if candidates[i].SatisfiesWeak {
				order = append(order, i)
			}
		}
		for i := 0; i < n; i++ {
			if !candidates[i].SatisfiesWeak {
				order = append(order, i)
			}
		}
	default:
		for i := 0; i < n; i++ {
			order = append(order, i)
		}
	}
	return order
}

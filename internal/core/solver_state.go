package core

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"rez-core/internal/types"
)

// assignment binds a package name to a concrete (package, variant)
// choice. source names the package whose requirement introduced the
// assignment; the root request uses the empty string.
type assignment struct {
	pkg     *Package
	variant int
	source  string
}

// pendingReq is an unsatisfied requirement plus the package that
// demanded it.
type pendingReq struct {
	req    Requirement
	source string
}

// searchState is one node of the A* search. States are owned by their
// worker's pool and recycled on prune; nothing retains a parent
// pointer, ancestry is recovered through assignment sources.
type searchState struct {
	assignments map[string]assignment
	pending     []pendingReq
	conflicts   []types.Conflict
	gCost       float64
	hScore      float64
	fScore      float64
	hash        uint64
	heapIndex   int
}

// isAncestor walks the assignment-source chain upward from name and
// reports whether ancestor appears on the path.
func (s *searchState) isAncestor(ancestor, name string) bool {
	seen := map[string]struct{}{}
	for cur := name; cur != ""; {
		if cur == ancestor {
			return true
		}
		if _, loop := seen[cur]; loop {
			return false
		}
		seen[cur] = struct{}{}
		a, ok := s.assignments[cur]
		if !ok {
			return false
		}
		cur = a.source
	}
	return false
}

// identity derives the stable state hash from the sorted assignment
// tuple plus the sorted pending tuple.
func (s *searchState) identity() uint64 {
	keys := make([]string, 0, len(s.assignments))
	for name, a := range s.assignments {
		keys = append(keys, name+"-"+a.pkg.Version.String()+"@"+strconv.Itoa(a.variant))
	}
	sort.Strings(keys)
	pend := make([]string, 0, len(s.pending))
	for _, p := range s.pending {
		pend = append(pend, p.req.String())
	}
	sort.Strings(pend)
	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
	}
	_, _ = d.WriteString("\x01")
	for _, p := range pend {
		_, _ = d.WriteString(p)
		_, _ = d.WriteString("\x00")
	}
	return d.Sum64()
}

// assignedNames returns "name-version@variant" labels sorted by name,
// used for partial-state reporting.
func (s *searchState) assignedNames() []string {
	out := make([]string, 0, len(s.assignments))
	for name, a := range s.assignments {
		label := name + "-" + a.pkg.Version.String()
		if a.variant >= 0 {
			label += "@" + strconv.Itoa(a.variant)
		}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// statePool recycles searchState allocations within one worker. Cleared
// states keep their map and slice capacity.
type statePool struct {
	free []*searchState
}

func (p *statePool) get() *searchState {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s
	}
	return &searchState{assignments: map[string]assignment{}}
}

func (p *statePool) put(s *searchState) {
	for k := range s.assignments {
		delete(s.assignments, k)
	}
	s.pending = s.pending[:0]
	s.conflicts = s.conflicts[:0]
	s.gCost = 0
	s.hScore = 0
	s.fScore = 0
	s.hash = 0
	s.heapIndex = 0
	p.free = append(p.free, s)
}

// clone copies the parent state into a pooled successor.
func (p *statePool) clone(parent *searchState) *searchState {
	s := p.get()
	for k, v := range parent.assignments {
		s.assignments[k] = v
	}
	s.pending = append(s.pending, parent.pending...)
	s.conflicts = append(s.conflicts, parent.conflicts...)
	s.gCost = parent.gCost
	return s
}

// stateHeap is a priority queue over f score with deterministic
// tie-breaks: fewer pending, then more assignments, then lower hash.
type stateHeap []*searchState

func (h stateHeap) Len() int { return len(h) }

func (h stateHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.fScore != b.fScore {
		return a.fScore < b.fScore
	}
	if len(a.pending) != len(b.pending) {
		return len(a.pending) < len(b.pending)
	}
	if len(a.assignments) != len(b.assignments) {
		return len(a.assignments) > len(b.assignments)
	}
	return a.hash < b.hash
}

func (h stateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *stateHeap) Push(x any) {
	s := x.(*searchState)
	s.heapIndex = len(*h)
	*h = append(*h, s)
}

func (h *stateHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}

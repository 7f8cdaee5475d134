package core

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rez-core/internal/policies"
	"rez-core/internal/types"
)

// Repository is the solver's view of scanned packages. Versions are
// returned newest-first and contain only usable packages.
type Repository interface {
	PackageVersions(name string) []*Package
	PackageNames() []string
}

// Solution is the outcome of a solver run. Fastest and optimal produce
// one set; all produces every goal found. The report is populated even
// when the run fails.
type Solution struct {
	Sets   []ResolvedSet
	Report types.SolveReport
}

// Set returns the primary resolved set.
func (s *Solution) Set() ResolvedSet {
	if len(s.Sets) == 0 {
		return ResolvedSet{}
	}
	return s.Sets[0]
}

// Solver runs A*-guided resolution over partial states.
type Solver struct {
	repo   Repository
	opts   types.SolveOptions
	cancel atomic.Bool
}

// NewSolver creates a solver bound to a repository view.
func NewSolver(repo Repository, opts types.SolveOptions) *Solver {
	return &Solver{repo: repo, opts: opts.Normalize()}
}

// Cancel requests termination. The flag is polled between expansions;
// the run returns a partial report within one poll period.
func (s *Solver) Cancel() { s.cancel.Store(true) }

// Solve resolves the given requirements. On failure the returned
// Solution still carries the solve report.
func (s *Solver) Solve(ctx context.Context, reqs []Requirement) (*Solution, error) {
	start := time.Now()
	run := newSolveRun(s)
	root := run.pool.get()
	for _, req := range reqs {
		root.pending = append(root.pending, pendingReq{req: req})
	}
	root.hash = root.identity()
	root.hScore = heuristic(root, run.opts, run.opts.WeightConflict)
	root.fScore = root.hScore

	var status types.SolveStatus
	if s.opts.ParallelWorkers > 1 {
		status = run.runParallel(ctx, root)
	} else {
		heap.Push(&run.open, root)
		status = run.runSerial(ctx)
	}

	solution := &Solution{Report: run.report(status, time.Since(start))}
	for _, goal := range run.sortedGoals() {
		solution.Sets = append(solution.Sets, finalizeResolvedSet(goal))
	}
	log.Ctx(ctx).Debug().
		Str("status", string(status)).
		Int("iterations", solution.Report.Iterations).
		Int("solutions", len(solution.Sets)).
		Msg("solve finished")
	if status == types.SolveSolved {
		return solution, nil
	}
	return solution, solveError(status, solution.Report)
}

func solveError(status types.SolveStatus, report types.SolveReport) error {
	var msg string
	switch status {
	case types.SolveUnsolvable:
		parts := make([]string, 0, len(report.Conflicts))
		for _, c := range report.Conflicts {
			parts = append(parts, fmt.Sprintf("%s(%s)", c.Kind, c.Package))
		}
		msg = fmt.Sprintf("unsolvable: no conflict-free package set exists: %s", strings.Join(parts, ", "))
	case types.SolveIterationLimit:
		msg = fmt.Sprintf("iteration_limit: search stopped after %d iterations", report.Iterations)
	case types.SolveCancelled:
		msg = "cancelled: solve interrupted"
	default:
		msg = "internal: unexpected solve status"
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msg)
}

// solveRun holds the mutable search bookkeeping of one invocation.
// With parallel workers each worker owns a solveRun whose shared field
// routes frontier, dedupe, and reporting through the synchronized
// structures in solver_parallel.go.
type solveRun struct {
	solver *Solver
	opts   types.SolveOptions
	pool   *statePool
	open   stateHeap
	closed map[uint64]struct{}
	shared *sharedSearch
	worker int

	iterations int
	fails      int
	peakStates int
	conflicts  map[string]*types.Conflict

	goals     []*searchState
	bestGoalG float64

	bestPartialLabels []string
	bestPartialH      float64
}

func newSolveRun(s *Solver) *solveRun {
	return &solveRun{
		solver:       s,
		opts:         s.opts,
		pool:         &statePool{},
		closed:       map[uint64]struct{}{},
		conflicts:    map[string]*types.Conflict{},
		bestGoalG:    -1,
		bestPartialH: -1,
	}
}

// seen atomically tests and records membership of the closed set.
func (r *solveRun) seen(hash uint64) bool {
	if r.shared != nil {
		_, loaded := r.shared.closed.LoadOrStore(hash, struct{}{})
		return loaded
	}
	if _, ok := r.closed[hash]; ok {
		return true
	}
	r.closed[hash] = struct{}{}
	return false
}

// push enqueues a successor on the open set.
func (r *solveRun) push(s *searchState) {
	if r.shared != nil {
		r.shared.push(s)
		return
	}
	heap.Push(&r.open, s)
}

func (r *solveRun) cancelled(ctx context.Context) bool {
	return r.solver.cancel.Load() || ctx.Err() != nil
}

// runSerial is the deterministic single-worker search loop.
func (r *solveRun) runSerial(ctx context.Context) types.SolveStatus {
	for r.open.Len() > 0 {
		if r.cancelled(ctx) {
			return types.SolveCancelled
		}
		r.iterations++
		if r.iterations > r.opts.MaxIterations {
			if len(r.goals) > 0 {
				return types.SolveSolved
			}
			return types.SolveIterationLimit
		}
		if r.open.Len() > r.peakStates {
			r.peakStates = r.open.Len()
		}
		state := heap.Pop(&r.open).(*searchState)
		if r.step(state) && r.opts.Strategy == types.StrategyFastest {
			return types.SolveSolved
		}
		if r.fails > r.opts.MaxFails {
			break
		}
	}
	if len(r.goals) > 0 {
		return types.SolveSolved
	}
	return types.SolveUnsolvable
}

// step handles one popped state: goal bookkeeping or expansion.
// Reports whether the state was a goal.
func (r *solveRun) step(state *searchState) bool {
	if best := r.bestGoal(); r.opts.Strategy == types.StrategyOptimal && best >= 0 && state.gCost >= best {
		r.pool.put(state)
		return false
	}
	if isGoal(state) {
		r.recordGoal(state)
		return true
	}
	r.trackPartial(state)
	r.expand(state)
	return false
}

// isGoal reports whether no hard requirement remains pending.
func isGoal(s *searchState) bool {
	for _, p := range s.pending {
		if !p.req.Weak && !p.req.Conflict {
			return false
		}
	}
	return len(s.conflicts) == 0
}

func (r *solveRun) bestGoal() float64 {
	if r.shared != nil {
		return r.shared.bestGoal()
	}
	return r.bestGoalG
}

func (r *solveRun) recordGoal(goal *searchState) {
	if r.shared != nil {
		r.shared.recordGoal(goal, r.opts.Strategy)
		return
	}
	if r.bestGoalG < 0 || goal.gCost < r.bestGoalG {
		r.bestGoalG = goal.gCost
	}
	r.goals = append(r.goals, goal)
}

func (r *solveRun) trackPartial(s *searchState) {
	if r.shared != nil {
		r.shared.trackPartial(s)
		return
	}
	if r.bestPartialH < 0 || s.hScore < r.bestPartialH {
		r.bestPartialH = s.hScore
		r.bestPartialLabels = s.assignedNames()
	}
}

func (r *solveRun) addFail() {
	if r.shared != nil {
		r.shared.failCount.Add(1)
		return
	}
	r.fails++
}

// selectPending applies fail-first branching: the hard pending
// requirement with the smallest candidate set, ties broken by name.
func (r *solveRun) selectPending(s *searchState) (pendingReq, bool) {
	best := -1
	bestCount := 0
	for i, p := range s.pending {
		if p.req.Weak || p.req.Conflict {
			continue
		}
		count := len(r.candidates(s, p.req.Name))
		if best < 0 || count < bestCount ||
			count == bestCount && p.req.Name < s.pending[best].req.Name {
			best = i
			bestCount = count
		}
	}
	if best < 0 {
		return pendingReq{}, false
	}
	return s.pending[best], true
}

// candidates filters the repository's versions of name against every
// hard pending requirement on that name, newest first.
func (r *solveRun) candidates(s *searchState, name string) []*Package {
	versions := r.solver.repo.PackageVersions(name)
	var out []*Package
	for _, pkg := range versions {
		ok := true
		for _, p := range s.pending {
			if p.req.Name != name || p.req.Weak {
				continue
			}
			if !p.req.Satisfied(pkg.Version) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, pkg)
		}
	}
	return out
}

// expand generates the successors of one state and recycles it.
func (r *solveRun) expand(s *searchState) {
	defer r.pool.put(s)
	target, ok := r.selectPending(s)
	if !ok {
		return
	}
	name := target.req.Name
	if r.mergedRange(s, name).IsEmpty() {
		r.recordConflict(types.ConflictVersion, name, "pending requirements have empty intersection")
		r.addFail()
		return
	}
	if len(r.solver.repo.PackageVersions(name)) == 0 {
		r.recordConflict(types.ConflictMissing, name, "package not present in any repository")
		r.addFail()
		return
	}
	candidates := r.candidates(s, name)
	if len(candidates) == 0 {
		r.recordConflict(types.ConflictVersion, name, "no version satisfies the combined requirements")
		r.addFail()
		return
	}
	infos := make([]policies.CandidateInfo, len(candidates))
	for i, pkg := range candidates {
		infos[i] = policies.CandidateInfo{SatisfiesWeak: satisfiesWeakPending(s, name, pkg.Version)}
	}
	order := policies.OrderCandidates(r.opts.ConflictStrategy, infos)
	for rank, idx := range order {
		pkg := candidates[idx]
		variants := []int{-1}
		if len(pkg.Variants) > 0 {
			variants = variants[:0]
			for vi := range pkg.Variants {
				variants = append(variants, vi)
			}
		}
		for _, variant := range variants {
			succ := r.pool.clone(s)
			if !r.apply(succ, pkg, variant, target, rank, len(order)) {
				r.addFail()
				r.pool.put(succ)
				continue
			}
			succ.hash = succ.identity()
			if r.seen(succ.hash) {
				r.pool.put(succ)
				continue
			}
			succ.hScore = heuristic(succ, r.opts, r.opts.WeightConflict)
			succ.fScore = succ.gCost + succ.hScore
			r.push(succ)
		}
	}
}

func satisfiesWeakPending(s *searchState, name string, v Version) bool {
	for _, p := range s.pending {
		if p.req.Name == name && p.req.Weak && !p.req.Range.Contains(v) {
			return false
		}
	}
	return true
}

// mergedRange intersects every hard pending range on name.
func (r *solveRun) mergedRange(s *searchState, name string) VersionRange {
	merged := AnyVersion()
	for _, p := range s.pending {
		if p.req.Name != name || p.req.Weak || p.req.Conflict {
			continue
		}
		merged = merged.Intersect(p.req.Range)
	}
	return merged
}

// weakMissPenalty is added to g for every weak preference the chosen
// version does not satisfy.
const weakMissPenalty = 0.5

// apply assigns (pkg, variant) into succ, merges the package's own
// requirements into pending, and enforces consistency. Reports false
// when the successor must be pruned; a conflict record is emitted for
// the report in that case.
func (r *solveRun) apply(succ *searchState, pkg *Package, variant int, target pendingReq, rank, total int) bool {
	name := pkg.Name
	// Check the assignment against everything pending on this name, then
	// retire those requirements.
	retained := succ.pending[:0]
	for _, p := range succ.pending {
		if p.req.Name != name {
			retained = append(retained, p)
			continue
		}
		switch {
		case p.req.Conflict:
			if p.req.Range.Contains(pkg.Version) {
				r.recordConflict(types.ConflictVersion, name,
					fmt.Sprintf("%s forbidden by conflict requirement %s", pkg.QualifiedName(), p.req))
				return false
			}
		case p.req.Weak:
			if !p.req.Range.Contains(pkg.Version) {
				succ.gCost += weakMissPenalty
			}
		default:
			if !p.req.Range.Contains(pkg.Version) {
				r.recordConflict(types.ConflictVersion, name,
					fmt.Sprintf("%s outside required range %s", pkg.QualifiedName(), p.req.Range))
				return false
			}
		}
	}
	succ.pending = retained
	succ.assignments[name] = assignment{pkg: pkg, variant: variant, source: target.source}
	succ.gCost += 1 + 1/float64(total-rank)

	reqs := pkg.VariantRequires(variant)
	if r.opts.IncludeBuildRequires {
		reqs = append(append([]Requirement{}, reqs...), pkg.BuildRequires...)
	}
	for _, req := range reqs {
		if !r.mergeRequirement(succ, req, name) {
			return false
		}
	}
	return true
}

// mergeRequirement folds one requirement demanded by source into the
// successor's pending set, enforcing conflicts, satisfaction, and cycle
// freedom against current assignments.
func (r *solveRun) mergeRequirement(succ *searchState, req Requirement, source string) bool {
	if req.Conflict {
		if a, ok := succ.assignments[req.Name]; ok && req.Range.Contains(a.pkg.Version) {
			r.recordConflict(types.ConflictVersion, req.Name,
				fmt.Sprintf("assigned %s forbidden by %s from %s", a.pkg.QualifiedName(), req, source))
			return false
		}
		return r.appendPending(succ, req, source)
	}
	if succ.isAncestor(req.Name, source) {
		r.recordConflict(types.ConflictCycle, req.Name,
			fmt.Sprintf("dependency cycle through %s and %s", req.Name, source))
		return false
	}
	if a, ok := succ.assignments[req.Name]; ok {
		if req.Weak {
			if !req.Range.Contains(a.pkg.Version) {
				succ.gCost += weakMissPenalty
			}
			return true
		}
		if !req.Satisfied(a.pkg.Version) {
			r.recordConflict(types.ConflictVersion, req.Name,
				fmt.Sprintf("assigned %s outside range %s required by %s", a.pkg.QualifiedName(), req.Range, source))
			return false
		}
		return true
	}
	return r.appendPending(succ, req, source)
}

func (r *solveRun) appendPending(succ *searchState, req Requirement, source string) bool {
	label := req.String()
	for _, p := range succ.pending {
		if p.req.String() == label {
			return true
		}
	}
	succ.pending = append(succ.pending, pendingReq{req: req, source: source})
	return true
}

func (r *solveRun) recordConflict(kind types.ConflictKind, pkg string, detail string) {
	if r.shared != nil {
		r.shared.recordConflict(kind, pkg, detail)
		return
	}
	key := string(kind) + "\x00" + pkg + "\x00" + detail
	if c, ok := r.conflicts[key]; ok {
		c.Count++
		return
	}
	r.conflicts[key] = &types.Conflict{Kind: kind, Package: pkg, Detail: detail, Count: 1}
}

// sortedGoals orders goals per strategy: optimal by g cost, all by
// (g cost, hash) for stable enumeration, fastest in discovery order.
func (r *solveRun) sortedGoals() []*searchState {
	goals := make([]*searchState, len(r.goals))
	copy(goals, r.goals)
	switch r.opts.Strategy {
	case types.StrategyOptimal, types.StrategyAll:
		sort.SliceStable(goals, func(i, j int) bool {
			if goals[i].gCost != goals[j].gCost {
				return goals[i].gCost < goals[j].gCost
			}
			return goals[i].hash < goals[j].hash
		})
	}
	if r.opts.Strategy != types.StrategyAll && len(goals) > 1 {
		goals = goals[:1]
	}
	return goals
}

// report assembles the solve report, listing the top-k conflicts by
// observation count.
func (r *solveRun) report(status types.SolveStatus, elapsed time.Duration) types.SolveReport {
	conflicts := make([]types.Conflict, 0, len(r.conflicts))
	for _, c := range r.conflicts {
		conflicts = append(conflicts, *c)
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Count != conflicts[j].Count {
			return conflicts[i].Count > conflicts[j].Count
		}
		if conflicts[i].Package != conflicts[j].Package {
			return conflicts[i].Package < conflicts[j].Package
		}
		return conflicts[i].Kind < conflicts[j].Kind
	})
	if len(conflicts) > r.opts.TopConflicts {
		conflicts = conflicts[:r.opts.TopConflicts]
	}
	report := types.SolveReport{
		Status:     status,
		Iterations: r.iterations,
		PeakStates: r.peakStates,
		Elapsed:    elapsed,
		Conflicts:  conflicts,
	}
	if status == types.SolveIterationLimit || status == types.SolveCancelled {
		report.BestPartial = r.bestPartialLabels
	}
	return report
}

// finalizeResolvedSet orders a goal's assignments topologically with
// ties broken by name.
func finalizeResolvedSet(goal *searchState) ResolvedSet {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for name := range goal.assignments {
		indegree[name] = 0
	}
	for name, a := range goal.assignments {
		for _, req := range a.pkg.VariantRequires(a.variant) {
			if req.Conflict {
				continue
			}
			if _, ok := goal.assignments[req.Name]; !ok {
				continue
			}
			// Edge dep -> dependent: dependents appear after their deps.
			dependents[req.Name] = append(dependents[req.Name], name)
			indegree[name]++
		}
	}
	ready := make([]string, 0, len(indegree))
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	var rs ResolvedSet
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		a := goal.assignments[name]
		rs.Entries = append(rs.Entries, ResolvedEntry{Package: a.pkg, Variant: a.variant})
		released := false
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}
	// Cycles cannot reach here: cyclic candidates are pruned during
	// search. Guard against losing entries regardless.
	if len(rs.Entries) < len(goal.assignments) {
		seen := map[string]struct{}{}
		for _, e := range rs.Entries {
			seen[e.Package.Name] = struct{}{}
		}
		rest := make([]string, 0)
		for name := range goal.assignments {
			if _, ok := seen[name]; !ok {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		for _, name := range rest {
			a := goal.assignments[name]
			rs.Entries = append(rs.Entries, ResolvedEntry{Package: a.pkg, Variant: a.variant})
		}
	}
	return rs
}

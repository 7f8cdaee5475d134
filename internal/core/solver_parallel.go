package core

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"rez-core/internal/types"
)

// sharedSearch is the synchronized bookkeeping of a parallel solve. The
// open set is sharded by state hash; workers pull from their own shard
// and steal from siblings when it runs dry. The closed set is a single
// concurrent map.
type sharedSearch struct {
	shards []frontierShard
	closed sync.Map

	inflight   atomic.Int64
	iterations atomic.Int64
	failCount  atomic.Int64
	peakStates atomic.Int64
	stop       atomic.Bool

	mu                sync.Mutex
	goals             []*searchState
	bestGoalG         float64
	conflicts         map[string]*types.Conflict
	bestPartialLabels []string
	bestPartialH      float64
}

type frontierShard struct {
	mu   sync.Mutex
	open stateHeap
}

func newSharedSearch(workers int) *sharedSearch {
	return &sharedSearch{
		shards:       make([]frontierShard, workers),
		bestGoalG:    -1,
		bestPartialH: -1,
		conflicts:    map[string]*types.Conflict{},
	}
}

// push routes a state to its shard by stable hash. The peak-state
// gauge is the inflight high-water mark.
func (ss *sharedSearch) push(s *searchState) {
	shard := &ss.shards[s.hash%uint64(len(ss.shards))]
	total := ss.inflight.Add(1)
	shard.mu.Lock()
	heap.Push(&shard.open, s)
	shard.mu.Unlock()
	for {
		peak := ss.peakStates.Load()
		if total <= peak || ss.peakStates.CompareAndSwap(peak, total) {
			return
		}
	}
}

// pop takes the best state from the worker's shard, stealing from the
// next shards in ring order when it is empty.
func (ss *sharedSearch) pop(worker int) *searchState {
	n := len(ss.shards)
	for i := 0; i < n; i++ {
		shard := &ss.shards[(worker+i)%n]
		shard.mu.Lock()
		if shard.open.Len() > 0 {
			s := heap.Pop(&shard.open).(*searchState)
			shard.mu.Unlock()
			return s
		}
		shard.mu.Unlock()
	}
	return nil
}

func (ss *sharedSearch) bestGoal() float64 {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.bestGoalG
}

// recordGoal publishes a goal atomically; the first publication under
// the fastest strategy stops every worker.
func (ss *sharedSearch) recordGoal(goal *searchState, strategy types.Strategy) {
	ss.mu.Lock()
	if ss.bestGoalG < 0 || goal.gCost < ss.bestGoalG {
		ss.bestGoalG = goal.gCost
	}
	ss.goals = append(ss.goals, goal)
	ss.mu.Unlock()
	if strategy == types.StrategyFastest {
		ss.stop.Store(true)
	}
}

func (ss *sharedSearch) trackPartial(s *searchState) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.bestPartialH < 0 || s.hScore < ss.bestPartialH {
		ss.bestPartialH = s.hScore
		ss.bestPartialLabels = s.assignedNames()
	}
}

func (ss *sharedSearch) recordConflict(kind types.ConflictKind, pkg string, detail string) {
	key := string(kind) + "\x00" + pkg + "\x00" + detail
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if c, ok := ss.conflicts[key]; ok {
		c.Count++
		return
	}
	ss.conflicts[key] = &types.Conflict{Kind: kind, Package: pkg, Detail: detail, Count: 1}
}

// runParallel explores the search with a fixed worker pool. The set of
// valid solutions under a strategy is deterministic; the first goal
// found under the fastest strategy is not.
func (r *solveRun) runParallel(ctx context.Context, root *searchState) types.SolveStatus {
	workers := r.opts.ParallelWorkers
	if limit := runtime.GOMAXPROCS(0) * 4; workers > limit {
		workers = limit
	}
	shared := newSharedSearch(workers)
	shared.push(root)

	var wg sync.WaitGroup
	hitLimit := atomic.Bool{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			wr := &solveRun{
				solver: r.solver,
				opts:   r.opts,
				pool:   &statePool{},
				shared: shared,
				worker: worker,
			}
			wr.workerLoop(ctx, &hitLimit)
		}(w)
	}
	wg.Wait()

	// Fold the shared aggregates back into the owning run for reporting.
	r.iterations = int(shared.iterations.Load())
	r.fails = int(shared.failCount.Load())
	r.peakStates = int(shared.peakStates.Load())
	shared.mu.Lock()
	r.goals = shared.goals
	r.bestGoalG = shared.bestGoalG
	r.bestPartialLabels = shared.bestPartialLabels
	r.bestPartialH = shared.bestPartialH
	for k, c := range shared.conflicts {
		r.conflicts[k] = c
	}
	shared.mu.Unlock()

	switch {
	case r.cancelled(ctx):
		return types.SolveCancelled
	case len(r.goals) > 0:
		return types.SolveSolved
	case hitLimit.Load():
		return types.SolveIterationLimit
	}
	return types.SolveUnsolvable
}

// workerLoop drains the sharded frontier until the search stops: a
// fastest goal published, the iteration budget spent, cancellation, or
// global exhaustion.
func (wr *solveRun) workerLoop(ctx context.Context, hitLimit *atomic.Bool) {
	shared := wr.shared
	for {
		if shared.stop.Load() || wr.cancelled(ctx) {
			return
		}
		state := shared.pop(wr.worker)
		if state == nil {
			if shared.inflight.Load() == 0 {
				return
			}
			runtime.Gosched()
			continue
		}
		if shared.iterations.Add(1) > int64(wr.opts.MaxIterations) {
			hitLimit.Store(true)
			shared.stop.Store(true)
			shared.inflight.Add(-1)
			return
		}
		goal := wr.step(state)
		shared.inflight.Add(-1)
		if goal && wr.opts.Strategy == types.StrategyFastest {
			return
		}
		if shared.failCount.Load() > int64(wr.opts.MaxFails) {
			shared.stop.Store(true)
			return
		}
	}
}

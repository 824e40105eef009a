package quarry

import (
	"sync/atomic"
	"testing"
)

// testScheduler creates a scheduler with the given worker count and
// silenced logging.
func testScheduler(t *testing.T, threads int) Scheduler {
	t.Helper()
	cfg := testConfig()
	cfg.Threads = threads
	s, err := Factory.NewScheduler(cfg)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	return s
}

// TestSchedulerRegistration tests entity registration, moves, and removal
func TestSchedulerRegistration(t *testing.T) {
	s := testScheduler(t, 1)
	chunkA := ChunkPos{X: 0, Y: 0, Z: 0}
	chunkB := ChunkPos{X: 1, Y: 0, Z: 0}

	s.RegisterEntity(1, chunkA, DefaultFlags())
	s.RegisterEntity(2, chunkA, DefaultFlags())
	s.RegisterEntity(3, chunkB, DefaultFlags())

	if s.EntityCount() != 3 {
		t.Errorf("EntityCount() is %d, want 3", s.EntityCount())
	}
	if s.ChunkCount() != 2 {
		t.Errorf("ChunkCount() is %d, want 2", s.ChunkCount())
	}

	// Re-registering under the same chunk changes nothing
	s.RegisterEntity(1, chunkA, DefaultFlags())
	if s.EntityCount() != 3 || s.ChunkCount() != 2 {
		t.Errorf("Re-registration changed counts: %d entities, %d chunks",
			s.EntityCount(), s.ChunkCount())
	}

	// Re-registering under a new chunk moves the entity
	chunkC := ChunkPos{X: 2, Y: 0, Z: 0}
	s.RegisterEntity(1, chunkC, DefaultFlags())
	if s.EntityCount() != 3 {
		t.Errorf("EntityCount() after move is %d, want 3", s.EntityCount())
	}
	groups := s.(*scheduler).groups
	if got := len(groups[chunkA].entities); got != 1 {
		t.Errorf("Source group holds %d entities after move, want 1", got)
	}
	if got := len(groups[chunkC].entities); got != 1 {
		t.Errorf("Destination group holds %d entities after move, want 1", got)
	}

	s.UnregisterEntity(3)
	if s.EntityCount() != 2 {
		t.Errorf("EntityCount() after unregister is %d, want 2", s.EntityCount())
	}

	// Unknown ids are no-ops
	s.UnregisterEntity(999)
	s.UpdateEntityChunk(999, chunkA)
	if s.EntityCount() != 2 {
		t.Errorf("No-op operations changed EntityCount() to %d, want 2", s.EntityCount())
	}
}

// TestDependencyFlags tests independence classification and conflicts
func TestDependencyFlags(t *testing.T) {
	def := DefaultFlags()
	if !def.ReadsWorld || def.WritesWorld || def.WritesEntities {
		t.Errorf("DefaultFlags() is %+v, want reads-world only", def)
	}

	tests := []struct {
		name            string
		flags           DependencyFlags
		wantIndependent bool
	}{
		{"Zero value", DependencyFlags{}, true},
		{"Default flags", DefaultFlags(), true},
		{"Reads entities", DependencyFlags{ReadsEntities: true}, true},
		{"Uses network", DependencyFlags{UsesNetwork: true}, true},
		{"Writes entities", DependencyFlags{WritesEntities: true}, false},
		{"Writes world", DependencyFlags{WritesWorld: true}, false},
		{"Writes both", DependencyFlags{WritesEntities: true, WritesWorld: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.IsIndependent(); got != tt.wantIndependent {
				t.Errorf("IsIndependent() is %v, want %v", got, tt.wantIndependent)
			}
		})
	}

	conflicts := []struct {
		name string
		a, b DependencyFlags
		want bool
	}{
		{"Two readers", DefaultFlags(), DefaultFlags(), false},
		{"Writer and writer", DependencyFlags{WritesEntities: true}, DependencyFlags{WritesEntities: true}, true},
		{"Reader and writer", DependencyFlags{ReadsEntities: true}, DependencyFlags{WritesEntities: true}, true},
		{"Writer and reader", DependencyFlags{WritesEntities: true}, DependencyFlags{ReadsEntities: true}, true},
		{"World writers", DependencyFlags{WritesWorld: true}, DependencyFlags{WritesWorld: true}, true},
		{"World writer and world reader", DependencyFlags{WritesWorld: true}, DependencyFlags{ReadsWorld: true}, false},
	}
	for _, tt := range conflicts {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.ConflictsWith(tt.b); got != tt.want {
				t.Errorf("ConflictsWith() is %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDetectIndependence tests the independence cache and its default
func TestDetectIndependence(t *testing.T) {
	s := testScheduler(t, 1)
	chunk := ChunkPos{}

	s.RegisterEntity(1, chunk, DefaultFlags())
	s.RegisterEntity(2, chunk, DependencyFlags{WritesWorld: true})

	if !s.DetectIndependence(1) {
		t.Errorf("DetectIndependence(1) is false, want true")
	}
	if s.DetectIndependence(2) {
		t.Errorf("DetectIndependence(2) is true, want false")
	}
	// Unregistered ids default to independent
	if !s.DetectIndependence(42) {
		t.Errorf("DetectIndependence(42) is false, want true for unknown id")
	}
}

// TestStickyChunkTaint tests that one dependent entity marks its whole
// group sequential and the mark outlives the entity
func TestStickyChunkTaint(t *testing.T) {
	s := testScheduler(t, 1)
	sched := s.(*scheduler)
	chunk := ChunkPos{X: 1, Y: 2, Z: 3}

	s.RegisterEntity(1, chunk, DefaultFlags())
	if !sched.groups[chunk].canParallel {
		t.Fatalf("Group sequential after independent registration, want parallel")
	}

	s.RegisterEntity(2, chunk, DependencyFlags{WritesWorld: true})
	if sched.groups[chunk].canParallel {
		t.Fatalf("Group parallel after dependent registration, want sequential")
	}

	// Removing the offender does not lift the taint
	s.UnregisterEntity(2)
	if sched.groups[chunk].canParallel {
		t.Errorf("Taint lifted by unregistering the dependent entity")
	}

	// Explicit re-evaluation does
	s.ReevaluateChunk(chunk)
	if !sched.groups[chunk].canParallel {
		t.Errorf("ReevaluateChunk left the group sequential, want parallel")
	}
}

// TestStickyTaintSurvivesLastMember tests that an emptied group keeps its
// taint and applies it to future members
func TestStickyTaintSurvivesLastMember(t *testing.T) {
	s := testScheduler(t, 1)
	sched := s.(*scheduler)
	chunk := ChunkPos{X: 5}

	s.RegisterEntity(1, chunk, DependencyFlags{WritesEntities: true})
	s.UnregisterEntity(1)

	group, ok := sched.groups[chunk]
	if !ok {
		t.Fatalf("Group dropped when its last member left, want retained")
	}
	if len(group.entities) != 0 {
		t.Fatalf("Group holds %d entities, want 0", len(group.entities))
	}
	if group.canParallel {
		t.Errorf("Emptied group lost its taint")
	}
	if s.ChunkCount() != 1 {
		t.Errorf("ChunkCount() is %d, want 1 (retained group)", s.ChunkCount())
	}

	// A future independent tenant inherits the stale taint until someone
	// re-evaluates
	s.RegisterEntity(2, chunk, DefaultFlags())
	if group.canParallel {
		t.Errorf("Taint lifted by registering an independent entity")
	}
	s.ReevaluateChunk(chunk)
	if !group.canParallel {
		t.Errorf("ReevaluateChunk left the group sequential, want parallel")
	}
}

// TestUpdateEntityChunkTaint tests that a dependent entity taints its
// destination when it moves
func TestUpdateEntityChunkTaint(t *testing.T) {
	s := testScheduler(t, 1)
	sched := s.(*scheduler)
	source := ChunkPos{X: 0}
	dest := ChunkPos{X: 1}

	s.RegisterEntity(1, dest, DefaultFlags())
	s.RegisterEntity(2, source, DependencyFlags{WritesWorld: true})
	if !sched.groups[dest].canParallel {
		t.Fatalf("Destination sequential before move, want parallel")
	}

	s.UpdateEntityChunk(2, dest)

	if sched.groups[source].canParallel {
		t.Errorf("Source group lost its taint on move, want kept")
	}
	if sched.groups[dest].canParallel {
		t.Errorf("Destination group parallel after dependent moved in, want sequential")
	}
	if got := len(sched.groups[source].entities); got != 0 {
		t.Errorf("Source group holds %d entities after move, want 0", got)
	}
	if got := len(sched.groups[dest].entities); got != 2 {
		t.Errorf("Destination group holds %d entities after move, want 2", got)
	}

	// Same-chunk moves are no-ops
	s.UpdateEntityChunk(2, dest)
	if got := len(sched.groups[dest].entities); got != 2 {
		t.Errorf("Same-chunk move changed membership to %d, want 2", got)
	}
}

// TestBuildBatches tests batch partitioning across threads
func TestBuildBatches(t *testing.T) {
	s := testScheduler(t, 4)

	// Eight independent entities in eight distinct chunks
	for i := 0; i < 8; i++ {
		s.RegisterEntity(EntityID(i+1), ChunkPos{X: int32(i)}, DefaultFlags())
	}
	// Three dependent entities share one chunk
	seqChunk := ChunkPos{X: 100}
	for i := 0; i < 3; i++ {
		s.RegisterEntity(EntityID(100+i), seqChunk, DependencyFlags{WritesWorld: true})
	}

	batches := s.BuildBatches()

	// ceil(8 parallel chunks / 4 threads) = 2 chunks per batch, so four
	// parallel batches plus the trailing sequential batch
	if len(batches) != 5 {
		t.Fatalf("BuildBatches returned %d batches, want 5", len(batches))
	}
	for i, batch := range batches {
		if batch.ID != i {
			t.Errorf("Batch %d has ID %d, want %d", i, batch.ID, i)
		}
	}
	for i := 0; i < 4; i++ {
		if !batches[i].Parallel {
			t.Errorf("Batch %d is sequential, want parallel", i)
		}
		if len(batches[i].Chunks) != 2 {
			t.Errorf("Batch %d holds %d chunks, want 2", i, len(batches[i].Chunks))
		}
		if batches[i].EntityCount != 2 {
			t.Errorf("Batch %d holds %d entities, want 2", i, batches[i].EntityCount)
		}
	}
	last := batches[4]
	if last.Parallel {
		t.Errorf("Trailing batch is parallel, want sequential")
	}
	if last.EntityCount != 3 {
		t.Errorf("Trailing batch holds %d entities, want 3", last.EntityCount)
	}

	// Batches are rebuilt from scratch every call
	for i := 0; i < 8; i++ {
		s.UnregisterEntity(EntityID(i + 1))
	}
	batches = s.BuildBatches()
	if len(batches) != 1 {
		t.Fatalf("BuildBatches after unregistering returned %d batches, want 1", len(batches))
	}
	if batches[0].Parallel || batches[0].EntityCount != 3 {
		t.Errorf("Remaining batch is %+v, want sequential with 3 entities", batches[0])
	}
}

// TestBuildBatchesEmpty tests the degenerate plans
func TestBuildBatchesEmpty(t *testing.T) {
	s := testScheduler(t, 2)
	if batches := s.BuildBatches(); len(batches) != 0 {
		t.Errorf("Empty scheduler built %d batches, want 0", len(batches))
	}

	// Emptied-but-retained groups do not produce batches
	s.RegisterEntity(1, ChunkPos{}, DefaultFlags())
	s.UnregisterEntity(1)
	if batches := s.BuildBatches(); len(batches) != 0 {
		t.Errorf("Scheduler with only empty groups built %d batches, want 0", len(batches))
	}
}

// TestParallelTickCounts tests that every registered entity ticks exactly
// once and lands in the expected stats bucket
func TestParallelTickCounts(t *testing.T) {
	s := testScheduler(t, 4)

	const entityCount = 100
	const chunkCount = 4
	for i := 0; i < entityCount; i++ {
		chunk := ChunkPos{X: int32(i % chunkCount)}
		s.RegisterEntity(EntityID(i+1), chunk, DefaultFlags())
	}

	var calls [entityCount]atomic.Int32
	s.ParallelTick(0.016, func(id EntityID, dt float64) {
		calls[id-1].Add(1)
	})

	for i := range calls {
		if got := calls[i].Load(); got != 1 {
			t.Errorf("Entity %d ticked %d times, want 1", i+1, got)
		}
	}

	stats := s.Stats()
	if stats.TotalEntities != entityCount {
		t.Errorf("Stats TotalEntities is %d, want %d", stats.TotalEntities, entityCount)
	}
	if stats.ParallelEntities != entityCount {
		t.Errorf("Stats ParallelEntities is %d, want %d", stats.ParallelEntities, entityCount)
	}
	if stats.SequentialEntities != 0 {
		t.Errorf("Stats SequentialEntities is %d, want 0", stats.SequentialEntities)
	}
	if stats.BatchCount != chunkCount {
		t.Errorf("Stats BatchCount is %d, want %d", stats.BatchCount, chunkCount)
	}
	if want := float64(entityCount) / float64(chunkCount); stats.AvgBatchSize != want {
		t.Errorf("Stats AvgBatchSize is %v, want %v", stats.AvgBatchSize, want)
	}
}

// TestParallelTickSingletonRunsSequential tests that a lone entity skips
// the pool
func TestParallelTickSingletonRunsSequential(t *testing.T) {
	s := testScheduler(t, 2)
	s.RegisterEntity(1, ChunkPos{}, DefaultFlags())

	ticked := 0
	s.ParallelTick(0.016, func(id EntityID, dt float64) {
		ticked++
	})

	if ticked != 1 {
		t.Errorf("Entity ticked %d times, want 1", ticked)
	}
	stats := s.Stats()
	if stats.ParallelEntities != 0 || stats.SequentialEntities != 1 {
		t.Errorf("Stats are parallel=%d sequential=%d, want 0 and 1",
			stats.ParallelEntities, stats.SequentialEntities)
	}
}

// TestParallelTickMixed tests parallel and sequential groups ticking in the
// same pass
func TestParallelTickMixed(t *testing.T) {
	s := testScheduler(t, 2)

	parallelChunk := ChunkPos{X: 0}
	taintedChunk := ChunkPos{X: 1}
	for i := 0; i < 3; i++ {
		s.RegisterEntity(EntityID(i+1), parallelChunk, DefaultFlags())
	}
	for i := 0; i < 2; i++ {
		s.RegisterEntity(EntityID(10+i), taintedChunk, DependencyFlags{WritesEntities: true})
	}

	var ticked atomic.Int32
	s.ParallelTick(0.016, func(id EntityID, dt float64) {
		ticked.Add(1)
	})

	if got := ticked.Load(); got != 5 {
		t.Errorf("Ticked %d entities, want 5", got)
	}
	stats := s.Stats()
	if stats.ParallelEntities != 3 {
		t.Errorf("Stats ParallelEntities is %d, want 3", stats.ParallelEntities)
	}
	if stats.SequentialEntities != 2 {
		t.Errorf("Stats SequentialEntities is %d, want 2", stats.SequentialEntities)
	}
}

// TestSequentialTickOrder tests that sequential batches run in
// registration order within a chunk
func TestSequentialTickOrder(t *testing.T) {
	s := testScheduler(t, 1)
	chunk := ChunkPos{}
	flags := DependencyFlags{WritesWorld: true}

	want := []EntityID{7, 3, 9}
	for _, id := range want {
		s.RegisterEntity(id, chunk, flags)
	}

	var got []EntityID
	s.ParallelTick(0.016, func(id EntityID, dt float64) {
		got = append(got, id)
	})

	if len(got) != len(want) {
		t.Fatalf("Ticked %d entities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tick order at %d is %d, want %d", i, got[i], want[i])
		}
	}
}

// TestParallelTickNilFunc tests that a nil callback still builds batches
// and updates stats
func TestParallelTickNilFunc(t *testing.T) {
	s := testScheduler(t, 2)
	for i := 0; i < 4; i++ {
		s.RegisterEntity(EntityID(i+1), ChunkPos{X: int32(i)}, DefaultFlags())
	}

	s.ParallelTick(0.016, nil)

	stats := s.Stats()
	if stats.TotalEntities != 4 {
		t.Errorf("Stats TotalEntities is %d, want 4", stats.TotalEntities)
	}
	if stats.BatchCount == 0 {
		t.Errorf("Stats BatchCount is 0, want nonzero")
	}
}

// TestSchedulerClear tests that Clear drops registrations, groups, taints,
// and stats
func TestSchedulerClear(t *testing.T) {
	s := testScheduler(t, 1)
	sched := s.(*scheduler)
	chunk := ChunkPos{X: 9}

	s.RegisterEntity(1, chunk, DependencyFlags{WritesWorld: true})
	s.ParallelTick(0.016, func(EntityID, float64) {})

	s.Clear()

	if s.EntityCount() != 0 || s.ChunkCount() != 0 {
		t.Errorf("Counts after clear: %d entities, %d chunks, want 0 and 0",
			s.EntityCount(), s.ChunkCount())
	}
	if stats := s.Stats(); stats.TotalEntities != 0 || stats.BatchCount != 0 {
		t.Errorf("Stats after clear: %+v, want zeroed", stats)
	}

	// Cleared groups lose their taint
	s.RegisterEntity(2, chunk, DefaultFlags())
	if !sched.groups[chunk].canParallel {
		t.Errorf("Group tainted after clear, want fresh parallel group")
	}
}

// TestSchedulerShutdown tests that ticks after shutdown are ignored
func TestSchedulerShutdown(t *testing.T) {
	s := testScheduler(t, 1)
	s.RegisterEntity(1, ChunkPos{}, DefaultFlags())

	s.Shutdown()
	s.Shutdown() // idempotent

	ticked := false
	s.ParallelTick(0.016, func(EntityID, float64) {
		ticked = true
	})
	if ticked {
		t.Errorf("Callback ran on shut-down scheduler, want ignored")
	}
}

// TestParallelTickIsolatedWrites tests the per-chunk isolation guarantee:
// entities in parallel batches write disjoint state, which the race
// detector verifies
func TestParallelTickIsolatedWrites(t *testing.T) {
	s := testScheduler(t, 4)

	const entityCount = 64
	results := make([]float64, entityCount)
	for i := 0; i < entityCount; i++ {
		s.RegisterEntity(EntityID(i+1), ChunkPos{X: int32(i % 8)}, DefaultFlags())
	}

	for tick := 0; tick < 10; tick++ {
		s.ParallelTick(0.25, func(id EntityID, dt float64) {
			results[id-1] += dt
		})
	}

	for i, got := range results {
		if got != 2.5 {
			t.Errorf("Entity %d accumulated %v, want 2.5", i+1, got)
		}
	}
}

// TestBatchBarrierOrdering tests that the sequential batch observes every
// parallel-batch write from the same tick: batch N completes fully before
// batch N+1 starts
func TestBatchBarrierOrdering(t *testing.T) {
	s := testScheduler(t, 4)

	const parallelCount = 32
	for i := 0; i < parallelCount; i++ {
		s.RegisterEntity(EntityID(i+1), ChunkPos{X: int32(i % 8)}, DefaultFlags())
	}
	// One dependent entity forces a trailing sequential batch
	observer := EntityID(1000)
	s.RegisterEntity(observer, ChunkPos{X: 100}, DependencyFlags{WritesWorld: true})

	stamps := make([]int64, parallelCount)
	for tick := 0; tick < 20; tick++ {
		var observed int64 = -1
		s.ParallelTick(0.016, func(id EntityID, dt float64) {
			if id == observer {
				// Runs in the last batch, after every parallel batch's
				// barrier; all parallel stamps must already be visible.
				observed = 0
				for _, stamp := range stamps {
					observed += stamp
				}
				return
			}
			atomic.AddInt64(&stamps[id-1], 1)
		})
		want := int64(parallelCount) * int64(tick+1)
		if observed != want {
			t.Fatalf("Tick %d: sequential batch observed %d parallel writes, want %d",
				tick, observed, want)
		}
	}
}

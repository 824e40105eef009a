package quarry

import (
	"sync/atomic"
	"time"
)

var _ Scheduler = &scheduler{}

// tickEntry is one entity's registration: the chunk it lives in and what
// its tick touches.
type tickEntry struct {
	chunk ChunkPos
	flags DependencyFlags
}

// scheduler partitions registered entities into chunk groups, classifies
// each group as parallel-eligible or sequential, and fans tick batches out
// over the worker pool. Registration, batch building, and ticking belong to
// one orchestrating goroutine; only the stats counters are safe to read
// from elsewhere.
type scheduler struct {
	cfg       *Config
	log       *Logger
	pool      *Pool
	poolOwned bool
	threads   int

	entities map[EntityID]tickEntry
	groups   map[ChunkPos]*chunkGroup
	indep    map[EntityID]bool

	counters     schedCounters
	closed       atomic.Bool
	warnedClosed atomic.Bool
}

func newScheduler(cfg *Config) (Scheduler, error) {
	cfg = normalizeConfig(cfg)
	s := &scheduler{
		cfg:      cfg,
		log:      cfg.logger(),
		entities: make(map[EntityID]tickEntry),
		groups:   make(map[ChunkPos]*chunkGroup),
		indep:    make(map[EntityID]bool),
	}
	if cfg.Pool != nil {
		s.pool = cfg.Pool
	} else {
		pool, err := newPool(cfg.threads(), s.log)
		if err != nil {
			return nil, SchedulerInitError{Err: err}
		}
		s.pool = pool
		s.poolOwned = true
	}
	s.threads = s.pool.Size()
	s.log.Info("parallel scheduler initialized with %d worker threads", s.threads)
	return s, nil
}

// RegisterEntity inserts or updates the entity's registration and adds it
// to its chunk's group. A dependent entity marks the group sequential, and
// the mark is sticky: unregistering or moving the entity later does not
// lift it. Re-registering under a new chunk moves the entity.
func (s *scheduler) RegisterEntity(id EntityID, chunk ChunkPos, flags DependencyFlags) {
	if prev, ok := s.entities[id]; ok && prev.chunk != chunk {
		s.removeFromGroup(id, prev.chunk)
	}
	s.entities[id] = tickEntry{chunk: chunk, flags: flags}
	independent := flags.IsIndependent()
	s.indep[id] = independent

	group, ok := s.groups[chunk]
	if !ok {
		group = newChunkGroup(chunk)
		s.groups[chunk] = group
	}
	group.add(id)
	if !independent {
		group.canParallel = false
	}
}

// UnregisterEntity removes the entity's registration and group membership.
// The group's parallel flag is not re-evaluated: a taint outlives the
// entity that caused it, and an emptied group keeps its flag. Unknown ids
// are no-ops.
func (s *scheduler) UnregisterEntity(id EntityID) {
	if entry, ok := s.entities[id]; ok {
		s.removeFromGroup(id, entry.chunk)
	}
	delete(s.entities, id)
	delete(s.indep, id)
}

// UpdateEntityChunk moves the entity between chunk groups. A dependent
// entity taints its destination exactly as registering it there would;
// neither group is otherwise re-evaluated, so the source keeps any taint
// the entity caused. Unknown ids and same-chunk moves are no-ops.
func (s *scheduler) UpdateEntityChunk(id EntityID, chunk ChunkPos) {
	entry, ok := s.entities[id]
	if !ok || entry.chunk == chunk {
		return
	}
	s.removeFromGroup(id, entry.chunk)
	entry.chunk = chunk
	s.entities[id] = entry

	group, found := s.groups[chunk]
	if !found {
		group = newChunkGroup(chunk)
		s.groups[chunk] = group
	}
	group.add(id)
	if !s.DetectIndependence(id) {
		group.canParallel = false
	}
}

// DetectIndependence reports whether the entity may tick inside a parallel
// batch, from the cache filled at registration. Unregistered ids default to
// independent: the scheduler trusts entities it has never seen rather than
// serializing them, so callers whose entities write shared state must
// register them before the first tick.
func (s *scheduler) DetectIndependence(id EntityID) bool {
	if cached, ok := s.indep[id]; ok {
		return cached
	}
	if entry, ok := s.entities[id]; ok {
		return entry.flags.IsIndependent()
	}
	// Default to independent if not registered
	return true
}

// ReevaluateChunk recomputes the group's parallel flag from its current
// members. This is the only way a tainted group regains parallel
// eligibility short of Clear.
func (s *scheduler) ReevaluateChunk(chunk ChunkPos) {
	group, ok := s.groups[chunk]
	if !ok {
		return
	}
	group.canParallel = true
	for _, id := range group.entities {
		if !s.DetectIndependence(id) {
			group.canParallel = false
			return
		}
	}
}

// ParallelTick rebuilds batches and executes them strictly in build order,
// with a full barrier between batches. A batch whose chunks are all
// parallel-eligible and which holds more than one entity fans out over the
// pool, one task per chunk group; every other batch runs on the calling
// goroutine in chunk-then-registration order. A nil fn skips the callback
// but still builds batches and updates stats.
func (s *scheduler) ParallelTick(dt float64, fn TickFunc) {
	if s.closed.Load() {
		if s.warnedClosed.CompareAndSwap(false, true) {
			s.log.Warn("tick on shut-down scheduler ignored")
		}
		return
	}
	start := time.Now()
	batches := s.BuildBatches()

	var parallelCount, sequentialCount int64
	for _, batch := range batches {
		if batch.Parallel && batch.EntityCount > 1 && s.allParallel(batch.Chunks) {
			tasks := make([]func(), 0, len(batch.Chunks))
			for _, pos := range batch.Chunks {
				group, ok := s.groups[pos]
				if !ok || len(group.entities) == 0 {
					continue
				}
				members := group.entities
				tasks = append(tasks, func() {
					if fn == nil {
						return
					}
					for _, id := range members {
						fn(id, dt)
					}
				})
			}
			s.pool.Do(tasks...)
			parallelCount += int64(batch.EntityCount)
			continue
		}
		for _, pos := range batch.Chunks {
			group, ok := s.groups[pos]
			if !ok {
				continue
			}
			for _, id := range group.entities {
				if fn != nil {
					fn(id, dt)
				}
				sequentialCount++
			}
		}
	}

	s.counters.total.Store(parallelCount + sequentialCount)
	s.counters.parallel.Store(parallelCount)
	s.counters.sequential.Store(sequentialCount)
	s.counters.lastTickUs.Store(time.Since(start).Microseconds())
}

func (s *scheduler) EntityCount() int { return len(s.entities) }

// ChunkCount includes emptied groups retained for their sticky flag.
func (s *scheduler) ChunkCount() int { return len(s.groups) }

func (s *scheduler) Stats() SchedulerStats {
	batches := s.counters.batches.Load()
	var avg float64
	if batches > 0 {
		avg = float64(len(s.entities)) / float64(batches)
	}
	return SchedulerStats{
		TotalEntities:      int(s.counters.total.Load()),
		ParallelEntities:   int(s.counters.parallel.Load()),
		SequentialEntities: int(s.counters.sequential.Load()),
		BatchCount:         int(batches),
		AvgBatchSize:       avg,
		LastTickTimeUs:     s.counters.lastTickUs.Load(),
	}
}

// Clear drops every registration, group, and stat. Cleared groups lose
// their taint.
func (s *scheduler) Clear() {
	clear(s.entities)
	clear(s.groups)
	clear(s.indep)
	s.counters.reset()
}

// Shutdown clears the scheduler and releases the worker pool when it owns
// one. Further ticks are no-ops.
func (s *scheduler) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.Clear()
	if s.poolOwned {
		s.pool.Close()
	}
	s.log.Info("parallel scheduler shut down")
}

func (s *scheduler) removeFromGroup(id EntityID, chunk ChunkPos) {
	if group, ok := s.groups[chunk]; ok {
		group.remove(id)
	}
}

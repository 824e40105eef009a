package quarry

import "sync/atomic"

// WorldStats is a point-in-time snapshot of world storage and tick counters.
type WorldStats struct {
	TotalEntities int
	Archetypes    int

	// ParallelBatches counts archetype-system fan-outs dispatched to the
	// worker pool since construction or the last Clear.
	ParallelBatches uint64
	TicksProcessed  uint64

	// AvgTickTimeUs tracks the most recent completed tick.
	AvgTickTimeUs int64
}

// SchedulerStats is a point-in-time snapshot of the scheduler's last tick.
type SchedulerStats struct {
	TotalEntities      int
	ParallelEntities   int
	SequentialEntities int
	BatchCount         int
	AvgBatchSize       float64
	LastTickTimeUs     int64
}

// EngineStats aggregates the engine's frame counter with the snapshots of
// the world and scheduler it drives.
type EngineStats struct {
	Frames    uint64
	World     WorldStats
	Scheduler SchedulerStats
}

type worldCounters struct {
	ticks           atomic.Uint64
	parallelBatches atomic.Uint64
	lastTickUs      atomic.Int64
}

func (c *worldCounters) reset() {
	c.ticks.Store(0)
	c.parallelBatches.Store(0)
	c.lastTickUs.Store(0)
}

type schedCounters struct {
	total      atomic.Int64
	parallel   atomic.Int64
	sequential atomic.Int64
	batches    atomic.Int64
	lastTickUs atomic.Int64
}

func (c *schedCounters) reset() {
	c.total.Store(0)
	c.parallel.Store(0)
	c.sequential.Store(0)
	c.batches.Store(0)
	c.lastTickUs.Store(0)
}

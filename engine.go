package quarry

import (
	"context"
	"sync/atomic"
	"time"
)

// Engine couples a world and a scheduler behind one lifecycle: spawning,
// moving, and despawning through it keeps archetype rows, chunk groups, and
// the independence cache consistent with each other. All Engine methods
// except Stats belong to the frame-driving goroutine.
type Engine struct {
	cfg   *Config
	log   *Logger
	reg   *Registry
	world World
	sched Scheduler
	pool  *Pool

	spatial  *SpatialIndex
	posQuery QueryNode

	tickFns   []TickFunc
	frames    atomic.Uint64
	poolOwned bool
}

func newEngine(cfg *Config) (*Engine, error) {
	cfg = normalizeConfig(cfg)
	log := cfg.logger()

	pool := cfg.Pool
	ownsPool := false
	if pool == nil {
		p, err := newPool(cfg.threads(), log)
		if err != nil {
			return nil, SchedulerInitError{Err: err}
		}
		pool = p
		ownsPool = true
	}

	// World and scheduler share the engine's pool and logger.
	shared := *cfg
	shared.Pool = pool
	shared.Logger = log

	reg := newRegistry()
	w, err := newWorld(reg, &shared)
	if err != nil {
		if ownsPool {
			pool.Close()
		}
		return nil, err
	}
	s, err := newScheduler(&shared)
	if err != nil {
		w.Shutdown()
		if ownsPool {
			pool.Close()
		}
		return nil, err
	}

	return &Engine{
		cfg:       &shared,
		log:       log,
		reg:       reg,
		world:     w,
		sched:     s,
		pool:      pool,
		spatial:   newSpatialIndex(shared.cellSize()),
		posQuery:  Factory.NewQuery().And(PositionComponent),
		poolOwned: ownsPool,
	}, nil
}

func (e *Engine) World() World { return e.world }

func (e *Engine) Scheduler() Scheduler { return e.sched }

func (e *Engine) Registry() *Registry { return e.reg }

// SpawnAt creates an entity with a Position at the given coordinates and
// registers it with the scheduler under the containing chunk.
func (e *Engine) SpawnAt(x, y, z float64, flags DependencyFlags) (EntityID, error) {
	id := e.world.Spawn()
	if err := PositionComponent.Add(e.world, id, Position{X: x, Y: y, Z: z}); err != nil {
		return 0, err
	}
	e.sched.RegisterEntity(id, ChunkPosFromWorld(x, y, z), flags)
	return id, nil
}

// MoveEntity teleports the entity and moves its chunk registration. Unknown
// and dead ids are no-ops, matching the world contract.
func (e *Engine) MoveEntity(id EntityID, x, y, z float64) error {
	if !e.world.Alive(id) {
		return nil
	}
	if err := PositionComponent.Add(e.world, id, Position{X: x, Y: y, Z: z}); err != nil {
		return err
	}
	e.sched.UpdateEntityChunk(id, ChunkPosFromWorld(x, y, z))
	return nil
}

// DespawnEntity removes the entity from its archetype, its chunk group, and
// the independence cache in one step.
func (e *Engine) DespawnEntity(id EntityID) error {
	if err := e.world.Despawn(id); err != nil {
		return err
	}
	e.sched.UnregisterEntity(id)
	return nil
}

// OnTick registers a per-entity callback run by the scheduler pass of every
// Tick. Callbacks in parallel batches run concurrently, so they must touch
// only their own entity's state. Not safe to call during Tick.
func (e *Engine) OnTick(fn TickFunc) {
	e.tickFns = append(e.tickFns, fn)
}

// Tick runs one frame: the scheduler's per-entity pass, then the world's
// system pass.
func (e *Engine) Tick(dt float64) error {
	var fn TickFunc
	if len(e.tickFns) > 0 {
		fn = e.dispatchTick
	}
	e.sched.ParallelTick(dt, fn)
	if err := e.world.ParallelTick(dt); err != nil {
		return err
	}
	frame := e.frames.Add(1)
	if e.cfg.EnableProfiling && frame%600 == 0 {
		ws, ss := e.world.Stats(), e.sched.Stats()
		e.log.Info("frame %d: %d entities, %d archetypes, %d batches, tick %dus",
			frame, ws.TotalEntities, ws.Archetypes, ss.BatchCount, ss.LastTickTimeUs)
	}
	return nil
}

func (e *Engine) dispatchTick(id EntityID, dt float64) {
	for _, fn := range e.tickFns {
		fn(id, dt)
	}
}

// Nearby returns the ids of entities whose positions fall in cells
// overlapping the sphere, rebuilding the spatial grid from current
// positions first. Results are cell-coarse like the underlying index.
func (e *Engine) Nearby(x, y, z, radius float64) []EntityID {
	e.spatial.Clear()
	cursor := Factory.NewCursor(e.posQuery, e.world)
	for row, view := range cursor.Entities() {
		ps := PositionComponent.Slice(view)
		e.spatial.Insert(view.EntityAt(row), ps[row].X, ps[row].Y, ps[row].Z)
	}
	return e.spatial.QueryRadius(x, y, z, radius)
}

// RunLoop drives Tick at a fixed rate until the context ends. A
// non-positive rate defaults to 60 ticks per second.
func (e *Engine) RunLoop(ctx context.Context, tps float64) error {
	if tps <= 0 {
		tps = 60
	}
	dt := 1.0 / tps
	ticker := time.NewTicker(time.Duration(float64(time.Second) / tps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(dt); err != nil {
				return err
			}
		}
	}
}

// Frames reports how many ticks have completed.
func (e *Engine) Frames() uint64 { return e.frames.Load() }

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Frames:    e.frames.Load(),
		World:     e.world.Stats(),
		Scheduler: e.sched.Stats(),
	}
}

// Shutdown stops the scheduler and world, then releases the pool when the
// engine owns it.
func (e *Engine) Shutdown() {
	e.log.Info("engine shutting down after %d frames", e.frames.Load())
	e.sched.Shutdown()
	e.world.Shutdown()
	if e.poolOwned {
		e.pool.Close()
	}
}

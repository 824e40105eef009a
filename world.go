package quarry

import (
	"fmt"
	"slices"
	"time"

	"github.com/TheBitDrifter/mask"
	iter_util "github.com/TheBitDrifter/util/iter"
)

var _ World = &world{}

// entityMeta locates a live entity inside archetype storage. arch == 0 means
// the entity was spawned but never given a component.
type entityMeta struct {
	arch  archetypeID
	row   int32
	alive bool
}

type world struct {
	cfg       *Config
	log       *Logger
	registry  *Registry
	lockDepth int
	opQueue   opQueue

	nextID   EntityID
	entities []entityMeta
	live     int

	archetypes archetypes
	plans      *planCache

	systems   []System
	pool      *Pool
	poolOwned bool

	counters worldCounters
}

type archetypes struct {
	nextID           archetypeID
	version          uint64
	asSlice          []*archetype
	idsGroupedByMask map[mask.Mask]archetypeID
}

func newWorld(reg *Registry, cfg *Config) (World, error) {
	cfg = normalizeConfig(cfg)
	w := &world{
		cfg:      cfg,
		log:      cfg.logger(),
		registry: reg,
		opQueue:  newOpQueue(),
		nextID:   1,
		archetypes: archetypes{
			nextID:           1,
			idsGroupedByMask: make(map[mask.Mask]archetypeID),
		},
		plans: newPlanCache(cfg.queryCacheSize()),
	}
	if cfg.Pool != nil {
		w.pool = cfg.Pool
	} else {
		pool, err := newPool(cfg.threads(), w.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create world worker pool: %w", err)
		}
		w.pool = pool
		w.poolOwned = true
	}
	w.systems = []System{NewMovementSystem()}
	return w, nil
}

// Spawn allocates an entity id with no components and no archetype home.
// Unlike the structural mutators it is legal while the world is locked,
// since it touches no archetype rows.
func (w *world) Spawn() EntityID {
	id := w.nextID
	w.nextID++
	w.ensureMeta(id)
	w.entities[id-1] = entityMeta{alive: true}
	w.live++
	return id
}

// NewEntities creates n entities sharing the given component kinds, all
// zero-valued, homed in the archetype keyed by the full kind set.
func (w *world) NewEntities(n int, components ...Component) ([]EntityID, error) {
	if w.lockDepth != 0 {
		return nil, LockedWorldError{}
	}
	if n <= 0 {
		return nil, nil
	}
	var entityMask mask.Mask
	kinds := make([]ComponentID, 0, len(components))
	for _, component := range components {
		kid, err := w.registry.Register(component)
		if err != nil {
			return nil, err
		}
		if slices.Contains(kinds, kid) {
			continue
		}
		entityMask.Mark(uint32(kid))
		kinds = append(kinds, kid)
	}
	arch := w.getOrCreateArchetype(entityMask, kinds)

	base := w.nextID
	w.ensureMeta(base + EntityID(n) - 1)
	ids := make([]EntityID, n)
	for i := 0; i < n; i++ {
		id := base + EntityID(i)
		row := arch.pushRow(id)
		w.entities[id-1] = entityMeta{arch: arch.id, row: int32(row), alive: true}
		ids[i] = id
	}
	w.nextID = base + EntityID(n)
	w.live += n
	return ids, nil
}

// EnqueueNewEntities creates entities immediately when the world is
// unlocked, otherwise queues the creation for the unlock flush.
func (w *world) EnqueueNewEntities(n int, components ...Component) error {
	if w.lockDepth == 0 {
		_, err := w.NewEntities(n, components...)
		if err != nil {
			return fmt.Errorf("failed to create entities directly: %w", err)
		}
		return nil
	}
	w.opQueue.createOps = append(w.opQueue.createOps, operation{
		typ:    opCreate,
		amount: n,
		comps:  components,
	})
	return nil
}

// Despawn removes entities from their archetypes and marks their ids dead.
// Unknown and already-dead ids are skipped.
func (w *world) Despawn(ids ...EntityID) error {
	if w.lockDepth != 0 {
		return LockedWorldError{}
	}
	for _, id := range ids {
		meta, ok := w.meta(id)
		if !ok {
			continue
		}
		if meta.arch != 0 {
			arch := w.archetypes.asSlice[meta.arch-1]
			oldRow := int(meta.row)
			if moved := arch.swapRemoveRow(oldRow); moved != 0 {
				w.entities[moved-1].row = int32(oldRow)
			}
		}
		w.entities[id-1] = entityMeta{}
		w.live--
	}
	return nil
}

// EnqueueDespawn despawns immediately when the world is unlocked, otherwise
// queues the despawn for the unlock flush. Queued despawns are deduplicated
// and run after every queued component operation.
func (w *world) EnqueueDespawn(ids ...EntityID) error {
	if w.lockDepth == 0 {
		return w.Despawn(ids...)
	}
	w.opQueue.enqueueDespawn(ids)
	return nil
}

// Alive reports whether the id names a live entity.
func (w *world) Alive(id EntityID) bool {
	_, ok := w.meta(id)
	return ok
}

func (w *world) EntityCount() int { return w.live }

func (w *world) ArchetypeCount() int { return len(w.archetypes.asSlice) }

func (w *world) Registry() *Registry { return w.registry }

// RegisterSystem appends systems to the tick pass. Registration order is
// execution order; the movement system is registered at construction.
func (w *world) RegisterSystem(systems ...System) {
	w.systems = append(w.systems, systems...)
}

// ParallelTick runs every registered system once, in order. Archetype
// systems fan their matched archetypes out across the worker pool, one task
// per archetype, and the pass waits for all of them before the next system
// starts. Plain systems run on the calling goroutine. The world is locked
// for the whole pass, so systems mutate structure through the Enqueue
// variants; the queue flushes when the pass ends.
func (w *world) ParallelTick(dt float64) error {
	start := time.Now()
	w.Lock()
	var batches uint64
	for _, sys := range w.systems {
		if as, ok := sys.(ArchetypeSystem); ok {
			matched := w.matchingArchetypes(as.Query())
			tasks := make([]func(), 0, len(matched))
			for _, arch := range matched {
				if arch.Len() == 0 {
					continue
				}
				view := ArchetypeView{reg: w.registry, a: arch}
				tasks = append(tasks, func() {
					as.RunArchetype(view, dt)
				})
			}
			if len(tasks) > 0 {
				w.pool.Do(tasks...)
				batches++
			}
			continue
		}
		if err := sys.Update(w, dt); err != nil {
			w.Unlock()
			return fmt.Errorf("system %q failed: %w", sys.Name(), err)
		}
	}
	w.Unlock()

	w.counters.ticks.Add(1)
	w.counters.parallelBatches.Add(batches)
	w.counters.lastTickUs.Store(time.Since(start).Microseconds())
	return nil
}

// Clear drops every entity and archetype and resets the id allocator and
// stats. The registry survives: component ids stay stable for the life of
// the process. The archetype version keeps counting so plans cached against
// the old generation can never match the new one.
func (w *world) Clear() {
	w.archetypes.asSlice = nil
	clear(w.archetypes.idsGroupedByMask)
	w.archetypes.nextID = 1
	w.plans.purge()
	w.entities = nil
	w.nextID = 1
	w.live = 0
	w.opQueue = newOpQueue()
	w.lockDepth = 0
	w.counters.reset()
}

// Shutdown releases the worker pool when the world owns it. Shared pools
// passed in through Config belong to the caller.
func (w *world) Shutdown() {
	if w.poolOwned {
		w.pool.Close()
	}
	w.log.Info("world shut down after %d ticks", w.counters.ticks.Load())
}

func (w *world) Stats() WorldStats {
	return WorldStats{
		TotalEntities:   w.live,
		Archetypes:      len(w.archetypes.asSlice),
		ParallelBatches: w.counters.parallelBatches.Load(),
		TicksProcessed:  w.counters.ticks.Load(),
		AvgTickTimeUs:   w.counters.lastTickUs.Load(),
	}
}

func (w *world) Locked() bool { return w.lockDepth != 0 }

// Lock freezes world structure. Locks nest; each Lock needs a matching
// Unlock.
func (w *world) Lock() { w.lockDepth++ }

// Unlock releases one level of the lock. Releasing the last level flushes
// the operation queue; a queued operation failing there panics, since the
// caller who queued it is long gone.
func (w *world) Unlock() {
	if w.lockDepth == 0 {
		return
	}
	w.lockDepth--
	if w.lockDepth != 0 {
		return
	}
	if err := w.processOperationQueue(); err != nil {
		panic(err)
	}
}

func (w *world) meta(id EntityID) (entityMeta, bool) {
	if id == 0 || int(id) > len(w.entities) {
		return entityMeta{}, false
	}
	m := w.entities[id-1]
	if !m.alive {
		return entityMeta{}, false
	}
	return m, true
}

func (w *world) ensureMeta(id EntityID) {
	neededLen := int(id)
	if neededLen <= len(w.entities) {
		return
	}
	if cap(w.entities) < neededLen {
		// Grow by doubling or the needed length, whichever is larger
		newCap := max(neededLen, 2*cap(w.entities))
		grown := make([]entityMeta, len(w.entities), newCap)
		copy(grown, w.entities)
		w.entities = grown
	}
	w.entities = w.entities[:neededLen]
}

func (w *world) getOrCreateArchetype(m mask.Mask, kinds []ComponentID) *archetype {
	if id, found := w.archetypes.idsGroupedByMask[m]; found {
		return w.archetypes.asSlice[id-1]
	}
	created := newArchetype(w.registry, w.archetypes.nextID, m, kinds)
	w.archetypes.asSlice = append(w.archetypes.asSlice, created)
	w.archetypes.idsGroupedByMask[m] = w.archetypes.nextID
	w.archetypes.nextID++
	w.archetypes.version++
	return created
}

// addComponent attaches the component's kind to the entity and returns the
// column and row where the caller writes the value. Adding a kind the entity
// already carries returns its existing slot. A nil column with a nil error
// means the entity is dead or unknown and the add was skipped.
func (w *world) addComponent(id EntityID, c Component) (column, int, error) {
	if w.lockDepth != 0 {
		return nil, 0, LockedWorldError{}
	}
	meta, ok := w.meta(id)
	if !ok {
		return nil, 0, nil
	}
	kid, err := w.registry.Register(c)
	if err != nil {
		return nil, 0, err
	}

	if meta.arch == 0 {
		// First component homes the entity.
		var m mask.Mask
		m.Mark(uint32(kid))
		arch := w.getOrCreateArchetype(m, []ComponentID{kid})
		row := arch.pushRow(id)
		w.entities[id-1] = entityMeta{arch: arch.id, row: int32(row), alive: true}
		return arch.columns[kid], row, nil
	}

	origin := w.archetypes.asSlice[meta.arch-1]
	if origin.hasKind(kid) {
		// Overwrite in place; the last write wins.
		return origin.columns[kid], int(meta.row), nil
	}

	destMask := origin.mask
	destMask.Mark(uint32(kid))
	kinds := append(iter_util.Collect(origin.Kinds()), kid)
	dest := w.getOrCreateArchetype(destMask, kinds)

	oldRow := int(meta.row)
	dstRow, moved := origin.transferRow(dest, oldRow)
	if moved != 0 {
		w.entities[moved-1].row = int32(oldRow)
	}
	w.entities[id-1] = entityMeta{arch: dest.id, row: int32(dstRow), alive: true}
	return dest.columns[kid], dstRow, nil
}

// componentAt resolves the storage slot holding the entity's value for the
// kind. Reads are legal while the world is locked.
func (w *world) componentAt(id EntityID, c Component) (column, int, bool) {
	meta, ok := w.meta(id)
	if !ok || meta.arch == 0 {
		return nil, 0, false
	}
	kid, known := w.registry.Lookup(c)
	if !known {
		return nil, 0, false
	}
	arch := w.archetypes.asSlice[meta.arch-1]
	if !arch.hasKind(kid) {
		return nil, 0, false
	}
	return arch.columns[kid], int(meta.row), true
}

// removeComponent detaches the kind and migrates the entity to the archetype
// keyed by the shrunken set. Removing the last kind moves the entity into
// the empty archetype rather than unhoming it. Absent kinds and dead ids are
// no-ops.
func (w *world) removeComponent(id EntityID, c Component) error {
	if w.lockDepth != 0 {
		return LockedWorldError{}
	}
	meta, ok := w.meta(id)
	if !ok || meta.arch == 0 {
		return nil
	}
	kid, known := w.registry.Lookup(c)
	if !known {
		return nil
	}
	origin := w.archetypes.asSlice[meta.arch-1]
	if !origin.hasKind(kid) {
		return nil
	}

	destMask := origin.mask
	destMask.Unmark(uint32(kid))
	kinds := make([]ComponentID, 0, len(origin.kinds)-1)
	for _, k := range origin.kinds {
		if k != kid {
			kinds = append(kinds, k)
		}
	}
	dest := w.getOrCreateArchetype(destMask, kinds)

	oldRow := int(meta.row)
	dstRow, moved := origin.transferRow(dest, oldRow)
	if moved != 0 {
		w.entities[moved-1].row = int32(oldRow)
	}
	w.entities[id-1] = entityMeta{arch: dest.id, row: int32(dstRow), alive: true}
	return nil
}

// matchingArchetypes returns the archetypes satisfying the query node,
// serving from the plan cache when the archetype set has not changed since
// the plan was built.
func (w *world) matchingArchetypes(node QueryNode) []*archetype {
	version := w.archetypes.version
	if ids, ok := w.plans.lookup(node, version); ok {
		matched := make([]*archetype, len(ids))
		for i, id := range ids {
			matched[i] = w.archetypes.asSlice[id-1]
		}
		return matched
	}
	var matched []*archetype
	var ids []archetypeID
	for _, arch := range w.archetypes.asSlice {
		if node.Evaluate(ArchetypeView{reg: w.registry, a: arch}, w.registry) {
			matched = append(matched, arch)
			ids = append(ids, arch.id)
		}
	}
	w.plans.store(node, version, ids)
	return matched
}

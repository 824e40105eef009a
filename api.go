package quarry

import (
	"iter"
	"reflect"
)

// EntityID identifies a live entity. IDs are dense, start at 1, and are not
// reused while the world lives; Clear resets the allocator.
type EntityID uint64

// TickFunc is the per-entity callback contract shared by the scheduler and
// the engine tick registration.
type TickFunc func(id EntityID, dt float64)

type World interface {
	Spawn() EntityID
	NewEntities(n int, components ...Component) ([]EntityID, error)
	EnqueueNewEntities(n int, components ...Component) error
	Despawn(ids ...EntityID) error
	EnqueueDespawn(ids ...EntityID) error
	Alive(id EntityID) bool
	EntityCount() int
	ArchetypeCount() int
	Registry() *Registry
	RegisterSystem(systems ...System)
	ParallelTick(dt float64) error
	Clear()
	Shutdown()
	Stats() WorldStats
	Locked() bool
	Lock()
	Unlock()
}

type Scheduler interface {
	RegisterEntity(id EntityID, chunk ChunkPos, flags DependencyFlags)
	UnregisterEntity(id EntityID)
	UpdateEntityChunk(id EntityID, chunk ChunkPos)
	DetectIndependence(id EntityID) bool
	ReevaluateChunk(chunk ChunkPos)
	BuildBatches() []TickBatch
	ParallelTick(dt float64, fn TickFunc)
	EntityCount() int
	ChunkCount() int
	Stats() SchedulerStats
	Clear()
	Shutdown()
}

// Component is the identity handle for a component kind. Handles are created
// with FactoryNewComponent (typed) or FactoryNewRawComponent (named byte
// blobs) and are freely copyable values.
type Component interface {
	ElementSize() uintptr
	kindType() reflect.Type
	kindName() string
	newColumn() column
}

type Query interface {
	QueryNode
	And(items ...interface{}) QueryNode
	Or(items ...interface{}) QueryNode
	Not(items ...interface{}) QueryNode
}

// QueryNode evaluates whether an archetype's component set satisfies a
// filter expression.
type QueryNode interface {
	Evaluate(arch ArchetypeView, reg *Registry) bool
}

// System is a named unit of per-tick work run by World.ParallelTick in
// registration order.
type System interface {
	Name() string
	Update(w World, dt float64) error
}

// ArchetypeSystem is implemented by systems that process whole archetypes.
// The world fans matching archetypes out across workers, one goroutine per
// archetype, so RunArchetype must touch nothing beyond its view.
type ArchetypeSystem interface {
	System
	Query() QueryNode
	RunArchetype(v ArchetypeView, dt float64)
}

type iCursor interface {
	Entities() iter.Seq2[int, ArchetypeView]
	Next() bool
}

// Cursor iterates entities matched by a query: lazy, finite, and single-use
// until Reset. The world is locked for the duration of iteration; structural
// changes made from inside the loop must go through the Enqueue variants.
type Cursor struct {
	// The query to filter entities
	query QueryNode

	// The world to iterate over
	world *world

	// Current iteration state
	currentArchetype *archetype
	archetypeIndex   int
	entityIndex      int
	remaining        int

	// Initialization state
	initialized bool
	matched     []*archetype
}

// AccessibleComponent extends a base Component with typed access into
// worlds, cursors, and archetype views.
type AccessibleComponent[T any] struct {
	Component
	Accessor[T] // concrete.
}

// ArchetypeView is a handle on one archetype used by queries and archetype
// systems. The slices it exposes are live storage, not copies.
type ArchetypeView struct {
	reg *Registry
	a   *archetype
}

// Len reports how many entities the archetype currently holds.
func (v ArchetypeView) Len() int { return v.a.Len() }

// ID returns the archetype's id, unique within its world.
func (v ArchetypeView) ID() uint32 { return v.a.ID() }

// EntityAt returns the entity occupying the given row.
func (v ArchetypeView) EntityAt(row int) EntityID { return v.a.entities[row] }

// Entities returns the live row-to-entity slice; treat it as read-only.
func (v ArchetypeView) Entities() []EntityID { return v.a.entities }

// Contains reports whether the archetype stores the component's kind.
func (v ArchetypeView) Contains(c Component) bool {
	id, ok := v.reg.Lookup(c)
	return ok && v.a.hasKind(id)
}

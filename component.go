package quarry

import (
	"reflect"
	"sync/atomic"
)

// typedIdentity is the Component implementation behind FactoryNewComponent:
// a kind identified by its concrete Go type.
type typedIdentity[T any] struct {
	typ  reflect.Type
	size uintptr
}

func newTypedIdentity[T any]() typedIdentity[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return typedIdentity[T]{typ: t, size: t.Size()}
}

func (i typedIdentity[T]) ElementSize() uintptr   { return i.size }
func (i typedIdentity[T]) kindType() reflect.Type { return i.typ }
func (i typedIdentity[T]) kindName() string       { return i.typ.String() }
func (i typedIdentity[T]) newColumn() column      { return &typedColumn[T]{size: i.size} }

// RawComponent is a kind identified by name and element size instead of a Go
// type. It exists for byte-level producers (bridges, wire decoders) and is
// where mismatched write sizes surface as errors rather than row corruption.
type RawComponent struct {
	name string
	size uintptr
}

func (c RawComponent) ElementSize() uintptr   { return c.size }
func (c RawComponent) kindType() reflect.Type { return nil }
func (c RawComponent) kindName() string       { return c.name }
func (c RawComponent) newColumn() column      { return &rawColumn{size: c.size} }

// Set writes one element's bytes for the entity, homing it first when the
// kind is not yet attached. The payload length is checked against the
// registered kind's element size before any structural change happens.
func (c RawComponent) Set(w World, id EntityID, raw []byte) error {
	ww := w.(*world)
	kid, err := ww.registry.Register(c)
	if err != nil {
		return err
	}
	if want := ww.registry.elementSize(kid); uintptr(len(raw)) != want {
		return ComponentSizeMismatchError{Component: c, Want: want, Got: uintptr(len(raw))}
	}
	col, row, err := ww.addComponent(id, c)
	if err != nil || col == nil {
		return err
	}
	rc := col.(*rawColumn)
	if !rc.set(row, raw) {
		return ComponentSizeMismatchError{Component: c, Want: rc.size, Got: uintptr(len(raw))}
	}
	return nil
}

// Bytes returns a view of the entity's element, or false when the entity is
// dead or does not carry the kind. Writes through the view cannot spill into
// neighbouring rows.
func (c RawComponent) Bytes(w World, id EntityID) ([]byte, bool) {
	ww := w.(*world)
	col, row, ok := ww.componentAt(id, c)
	if !ok {
		return nil, false
	}
	return col.(*rawColumn).at(row), true
}

// Remove detaches the kind from the entity; absent kinds and unknown
// entities are no-ops.
func (c RawComponent) Remove(w World, id EntityID) error {
	return w.(*world).removeComponent(id, c)
}

// EnqueueSet behaves like Set, deferring the write until the world unlocks
// when it is locked. The payload is validated and copied eagerly, so a
// mismatched size surfaces here and the caller may reuse the buffer.
func (c RawComponent) EnqueueSet(w World, id EntityID, raw []byte) error {
	ww := w.(*world)
	if !ww.Locked() {
		return c.Set(w, id, raw)
	}
	kid, err := ww.registry.Register(c)
	if err != nil {
		return err
	}
	if want := ww.registry.elementSize(kid); uintptr(len(raw)) != want {
		return ComponentSizeMismatchError{Component: c, Want: want, Got: uintptr(len(raw))}
	}
	buf := append([]byte(nil), raw...)
	ww.opQueue.enqueueComponentOp(opAddComponent, id, func() error {
		return c.Set(w, id, buf)
	})
	return nil
}

// EnqueueRemove behaves like Remove, deferring until the world unlocks when
// it is locked.
func (c RawComponent) EnqueueRemove(w World, id EntityID) error {
	ww := w.(*world)
	if !ww.Locked() {
		return c.Remove(w, id)
	}
	ww.opQueue.enqueueComponentOp(opRemoveComponent, id, func() error {
		return c.Remove(w, id)
	})
	return nil
}

// Accessor resolves a component kind against a registry, memoizing the
// binding so cursor-driven loops skip the map lookup.
type Accessor[T any] struct {
	memo *accessorMemo
}

type accessorMemo struct {
	binding atomic.Pointer[accessorBinding]
}

type accessorBinding struct {
	reg *Registry
	id  ComponentID
}

func newAccessor[T any]() Accessor[T] {
	return Accessor[T]{memo: &accessorMemo{}}
}

func (ac Accessor[T]) resolve(reg *Registry, c Component) (ComponentID, bool) {
	if b := ac.memo.binding.Load(); b != nil && b.reg == reg {
		return b.id, true
	}
	id, ok := reg.Lookup(c)
	if ok {
		ac.memo.binding.Store(&accessorBinding{reg: reg, id: id})
	}
	return id, ok
}

// Add attaches the component to the entity, migrating it to the archetype of
// its enlarged kind set. Adding a kind the entity already carries overwrites
// the value in place, so the last write wins. Unknown or despawned entities
// are no-ops.
func (c AccessibleComponent[T]) Add(w World, id EntityID, value T) error {
	ww := w.(*world)
	col, row, err := ww.addComponent(id, c.Component)
	if err != nil || col == nil {
		return err
	}
	col.(*typedColumn[T]).data[row] = value
	return nil
}

// Remove detaches the kind from the entity; absent kinds and unknown
// entities are no-ops.
func (c AccessibleComponent[T]) Remove(w World, id EntityID) error {
	return w.(*world).removeComponent(id, c.Component)
}

// EnqueueAdd behaves like Add, deferring the attach until the world unlocks
// when it is locked. Deferred adds against entities with a pending despawn
// are dropped.
func (c AccessibleComponent[T]) EnqueueAdd(w World, id EntityID, value T) error {
	ww := w.(*world)
	if !ww.Locked() {
		return c.Add(w, id, value)
	}
	ww.opQueue.enqueueComponentOp(opAddComponent, id, func() error {
		return c.Add(w, id, value)
	})
	return nil
}

// EnqueueRemove behaves like Remove, deferring until the world unlocks when
// it is locked.
func (c AccessibleComponent[T]) EnqueueRemove(w World, id EntityID) error {
	ww := w.(*world)
	if !ww.Locked() {
		return c.Remove(w, id)
	}
	ww.opQueue.enqueueComponentOp(opRemoveComponent, id, func() error {
		return c.Remove(w, id)
	})
	return nil
}

// Get returns a pointer to the entity's component value, or false when the
// entity is dead or does not carry the kind. The pointer stays valid until
// the next structural change touching the entity's archetype.
func (c AccessibleComponent[T]) Get(w World, id EntityID) (*T, bool) {
	ww := w.(*world)
	col, row, ok := ww.componentAt(id, c.Component)
	if !ok {
		return nil, false
	}
	return &col.(*typedColumn[T]).data[row], true
}

// GetFromCursor retrieves the component value for the entity at the cursor
// position.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	id, _ := c.resolve(cursor.world.registry, c.Component)
	col := cursor.currentArchetype.columns[id].(*typedColumn[T])
	return &col.data[cursor.entityIndex-1]
}

// GetFromCursorSafe safely retrieves a component value, checking that the
// archetype under the cursor carries the kind. Returns a boolean indicating
// success and the component pointer if found.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if !c.CheckCursor(cursor) {
		return false, nil
	}
	return true, c.GetFromCursor(cursor)
}

// CheckCursor determines if the component exists in the archetype at the
// cursor position.
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	id, ok := c.resolve(cursor.world.registry, c.Component)
	return ok && cursor.currentArchetype.hasKind(id)
}

// Slice exposes the archetype's storage lane for the kind as a typed slice
// aligned with the view's entity rows. Panics when the archetype does not
// carry the kind; use Check first when unsure.
func (c AccessibleComponent[T]) Slice(v ArchetypeView) []T {
	id, _ := c.resolve(v.reg, c.Component)
	return v.a.columns[id].(*typedColumn[T]).data
}

// Check reports whether the view's archetype carries the kind.
func (c AccessibleComponent[T]) Check(v ArchetypeView) bool {
	id, ok := c.resolve(v.reg, c.Component)
	return ok && v.a.hasKind(id)
}

package quarry

import "reflect"

// MaxComponentKinds bounds the distinct component kinds one registry can
// hold. Kind ids double as bit positions in archetype masks, so the limit is
// the mask width.
const MaxComponentKinds = 256

// ComponentID identifies a registered component kind. IDs are assigned in
// registration order and stay stable for the registry's lifetime.
type ComponentID uint16

// Registry assigns stable ids to component kinds. It is owned by the worlds
// it is passed to rather than held in package state, so independent worlds
// may disagree about ids without interfering.
type Registry struct {
	byType map[reflect.Type]ComponentID
	byName map[string]ComponentID
	kinds  []Component
}

func newRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]ComponentID),
		byName: make(map[string]ComponentID),
	}
}

// Register assigns an id to the component's kind, returning the existing id
// when the kind is already known. Typed kinds are keyed by their Go type,
// raw kinds by name.
func (r *Registry) Register(c Component) (ComponentID, error) {
	if id, ok := r.Lookup(c); ok {
		return id, nil
	}
	if len(r.kinds) >= MaxComponentKinds {
		return 0, RegistryFullError{Limit: MaxComponentKinds}
	}
	id := ComponentID(len(r.kinds))
	r.kinds = append(r.kinds, c)
	if t := c.kindType(); t != nil {
		r.byType[t] = id
	} else {
		r.byName[c.kindName()] = id
	}
	return id, nil
}

// Lookup returns the id for the component's kind without registering it.
func (r *Registry) Lookup(c Component) (ComponentID, bool) {
	if t := c.kindType(); t != nil {
		id, ok := r.byType[t]
		return id, ok
	}
	id, ok := r.byName[c.kindName()]
	return id, ok
}

// Count reports how many kinds are registered.
func (r *Registry) Count() int {
	return len(r.kinds)
}

func (r *Registry) newColumn(id ComponentID) column {
	return r.kinds[id].newColumn()
}

func (r *Registry) elementSize(id ComponentID) uintptr {
	return r.kinds[id].ElementSize()
}

package quarry

type factory struct{}

var Factory factory

func (f factory) NewRegistry() *Registry {
	return newRegistry()
}

func (f factory) NewWorld(reg *Registry, cfg *Config) (World, error) {
	return newWorld(reg, cfg)
}

func (f factory) NewScheduler(cfg *Config) (Scheduler, error) {
	return newScheduler(cfg)
}

func (f factory) NewEngine(cfg *Config) (*Engine, error) {
	return newEngine(cfg)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

func (f factory) NewCursor(query QueryNode, world World) *Cursor {
	return newCursor(query, world)
}

func (f factory) NewPool(size int, log *Logger) (*Pool, error) {
	return newPool(size, log)
}

func (f factory) NewSpatialIndex(cellSize float64) *SpatialIndex {
	return newSpatialIndex(cellSize)
}

// FactoryNewComponent creates the typed handle for T. Handles for the same
// T are interchangeable: kinds are keyed by type identity, not handle
// identity.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	return AccessibleComponent[T]{
		Component: newTypedIdentity[T](),
		Accessor:  newAccessor[T](),
	}
}

// FactoryNewRawComponent creates a kind identified by name with a fixed
// element size in bytes, for producers writing raw encoded values.
func FactoryNewRawComponent(name string, size uintptr) RawComponent {
	return RawComponent{name: name, size: size}
}

package quarry

// DependencyFlags declares what shared state an entity's tick touches. The
// zero value is fully independent; DefaultFlags is the ordinary
// world-reading entity.
type DependencyFlags struct {
	ReadsEntities  bool
	WritesEntities bool
	ReadsWorld     bool
	WritesWorld    bool
	UsesNetwork    bool
}

// DefaultFlags returns the declaration for an entity that reads world state
// and writes only its own.
func DefaultFlags() DependencyFlags {
	return DependencyFlags{ReadsWorld: true}
}

// IsIndependent reports whether the entity's tick may run in an
// unsynchronized parallel batch: it writes neither other entities nor world
// state.
func (f DependencyFlags) IsIndependent() bool {
	return !f.WritesEntities && !f.WritesWorld
}

// ConflictsWith reports whether two declarations cannot safely run
// concurrently. The scheduler never builds a conflict graph from this; it
// exists for callers composing their own groupings.
func (f DependencyFlags) ConflictsWith(other DependencyFlags) bool {
	// Write-write conflict
	if f.WritesEntities && other.WritesEntities {
		return true
	}
	// Read-write conflict
	if (f.ReadsEntities && other.WritesEntities) ||
		(f.WritesEntities && other.ReadsEntities) {
		return true
	}
	// World write conflict
	if f.WritesWorld && other.WritesWorld {
		return true
	}
	return false
}

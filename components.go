package quarry

// Built-in component kinds for the common simulation entities. They are
// ordinary components: nothing in the world treats them specially, and
// embedding engines are free to ignore them and register their own.

// Position is a world-space location.
type Position struct {
	X, Y, Z float64
}

// Velocity is a rate of position change per second.
type Velocity struct {
	X, Y, Z float64
}

// Rotation is an orientation in degrees. Systems keep Yaw normalized to
// [0, 360) and Pitch clamped to [-90, 90].
type Rotation struct {
	Yaw, Pitch, Roll float64
}

// AngularVelocity is a rate of rotation change in degrees per second.
type AngularVelocity struct {
	Yaw, Pitch, Roll float64
}

// Health tracks damageable state. Regen is restored per second up to Max.
type Health struct {
	Current, Max, Regen float64
}

// NewHealth returns a full health pool of the given capacity.
func NewHealth(max float64) Health {
	return Health{Current: max, Max: max}
}

// Lifetime despawns its entity when Remaining reaches zero; see
// NewLifetimeSystem.
type Lifetime struct {
	Remaining float64
}

var (
	PositionComponent        = FactoryNewComponent[Position]()
	VelocityComponent        = FactoryNewComponent[Velocity]()
	RotationComponent        = FactoryNewComponent[Rotation]()
	AngularVelocityComponent = FactoryNewComponent[AngularVelocity]()
	HealthComponent          = FactoryNewComponent[Health]()
	LifetimeComponent        = FactoryNewComponent[Lifetime]()
)

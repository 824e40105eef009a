package quarry

import (
	"math"
)

var (
	_ ArchetypeSystem = &movementSystem{}
	_ ArchetypeSystem = &transformSystem{}
	_ System          = &lifetimeSystem{}
)

// runSequential drives an archetype system over its matches on the calling
// goroutine, for drivers that run systems without the pool fan-out.
func runSequential(s ArchetypeSystem, w World, dt float64) error {
	ww := w.(*world)
	ww.Lock()
	defer ww.Unlock()
	for _, arch := range ww.matchingArchetypes(s.Query()) {
		if arch.Len() == 0 {
			continue
		}
		s.RunArchetype(ArchetypeView{reg: ww.registry, a: arch}, dt)
	}
	return nil
}

type movementSystem struct {
	query QueryNode
}

// NewMovementSystem integrates velocity into position. Worlds register it at
// construction; drivers composing their own system list can register another
// instance.
func NewMovementSystem() ArchetypeSystem {
	return &movementSystem{
		query: Factory.NewQuery().And(PositionComponent, VelocityComponent),
	}
}

func (s *movementSystem) Name() string { return "MovementSystem" }

func (s *movementSystem) Query() QueryNode { return s.query }

func (s *movementSystem) RunArchetype(v ArchetypeView, dt float64) {
	ps := PositionComponent.Slice(v)
	vs := VelocityComponent.Slice(v)
	for i := range ps {
		ps[i].X += vs[i].X * dt
		ps[i].Y += vs[i].Y * dt
		ps[i].Z += vs[i].Z * dt
	}
}

func (s *movementSystem) Update(w World, dt float64) error {
	return runSequential(s, w, dt)
}

type transformSystem struct {
	query QueryNode
}

// NewTransformSystem integrates angular velocity into rotation, keeping yaw
// in [0, 360) and pitch in [-90, 90].
func NewTransformSystem() ArchetypeSystem {
	return &transformSystem{
		query: Factory.NewQuery().And(RotationComponent, AngularVelocityComponent),
	}
}

func (s *transformSystem) Name() string { return "TransformSystem" }

func (s *transformSystem) Query() QueryNode { return s.query }

func (s *transformSystem) RunArchetype(v ArchetypeView, dt float64) {
	rs := RotationComponent.Slice(v)
	avs := AngularVelocityComponent.Slice(v)
	for i := range rs {
		rs[i].Yaw += avs[i].Yaw * dt
		rs[i].Pitch += avs[i].Pitch * dt
		rs[i].Roll += avs[i].Roll * dt

		rs[i].Yaw = math.Mod(rs[i].Yaw, 360)
		if rs[i].Yaw < 0 {
			rs[i].Yaw += 360
		}
		rs[i].Pitch = min(max(rs[i].Pitch, -90), 90)
	}
}

func (s *transformSystem) Update(w World, dt float64) error {
	return runSequential(s, w, dt)
}

type lifetimeSystem struct {
	query QueryNode
}

// NewLifetimeSystem decrements Lifetime.Remaining and despawns entities that
// hit zero. Despawns go through the operation queue, so they land after the
// tick's system pass finishes.
func NewLifetimeSystem() System {
	return &lifetimeSystem{
		query: Factory.NewQuery().And(LifetimeComponent),
	}
}

func (s *lifetimeSystem) Name() string { return "LifetimeSystem" }

func (s *lifetimeSystem) Update(w World, dt float64) error {
	var expired []EntityID
	cursor := Factory.NewCursor(s.query, w)
	for cursor.Next() {
		life := LifetimeComponent.GetFromCursor(cursor)
		life.Remaining -= dt
		if life.Remaining <= 0 {
			expired = append(expired, cursor.Entity())
		}
	}
	if len(expired) == 0 {
		return nil
	}
	return w.EnqueueDespawn(expired...)
}

/*
Package quarry is the simulation core of the VoxelForge engine: an
archetype-based Entity-Component-System paired with a dependency-aware
parallel tick scheduler.

Entities with identical component sets share an archetype, which stores each
component kind as a contiguous column for cache-friendly bulk updates. The
scheduler groups entities into 16-unit spatial chunks, classifies each chunk
as parallel-safe or sequential from per-entity dependency declarations, and
fans tick batches out over a fixed worker pool with a synchronization
barrier between batches.

Core Concepts:

  - Entity: a unique identifier representing a simulated object.
  - Component: a data container defining entity attributes.
  - Archetype: the shared storage of all entities with one exact component set.
  - Query: a way to find entities with specific component combinations.
  - ChunkGroup: entities sharing a 16-unit spatial cell, the scheduling unit.
  - TickBatch: chunks executed between two synchronization barriers.

Basic Usage:

	// Create a world
	registry := quarry.Factory.NewRegistry()
	world, _ := quarry.Factory.NewWorld(registry, quarry.DefaultConfig())

	// Create entities with built-in components
	entities, _ := world.NewEntities(100, quarry.PositionComponent, quarry.VelocityComponent)
	_ = entities

	// Query entities and process them
	queryNode := quarry.Factory.NewQuery().And(quarry.PositionComponent, quarry.VelocityComponent)
	cursor := quarry.Factory.NewCursor(queryNode, world)

	for cursor.Next() {
		pos := quarry.PositionComponent.GetFromCursor(cursor)
		vel := quarry.VelocityComponent.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

	// Or run the registered systems over the worker pool
	_ = world.ParallelTick(1.0 / 60.0)

For scheduling entity callbacks across chunks, register entities with a
Scheduler (or drive both through an Engine):

	sched, _ := quarry.Factory.NewScheduler(quarry.DefaultConfig())
	sched.RegisterEntity(entities[0], quarry.ChunkPosFromWorld(0, 64, 0), quarry.DefaultFlags())
	sched.ParallelTick(1.0/60.0, func(id quarry.EntityID, dt float64) {
		// per-entity work
	})

Quarry is the entity core for the VoxelForge engine but also works as a
standalone library.
*/
package quarry

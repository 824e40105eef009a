package quarry

import (
	"iter"
)

var _ iCursor = &Cursor{}

func newCursor(query QueryNode, w World) *Cursor {
	return &Cursor{
		query: query,
		world: w.(*world),
	}
}

// Next advances to the next matched entity. The first call locks the world;
// exhausting the cursor resets it and releases the lock. Break out early and
// the lock stays held until Reset is called.
func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.initialize()
	}
	for c.archetypeIndex < len(c.matched) {
		c.currentArchetype = c.matched[c.archetypeIndex]
		c.remaining = c.currentArchetype.Len()

		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.archetypeIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Entities iterates (row, archetype view) pairs across every matched
// archetype. Stopping early resets the cursor.
func (c *Cursor) Entities() iter.Seq2[int, ArchetypeView] {
	return func(yield func(int, ArchetypeView) bool) {
		c.initialize()

		for c.archetypeIndex < len(c.matched) {
			c.currentArchetype = c.matched[c.archetypeIndex]
			c.remaining = c.currentArchetype.Len()

			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, ArchetypeView{reg: c.world.registry, a: c.currentArchetype}) {
					c.Reset()
					return
				}
				c.entityIndex++
			}
			c.entityIndex = 0
			c.archetypeIndex++
		}
		c.Reset()
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.world.Lock()
	c.matched = c.world.matchingArchetypes(c.query)
	if len(c.matched) > 0 {
		c.archetypeIndex = 0
		c.currentArchetype = c.matched[0]
		c.remaining = c.currentArchetype.Len()
	}
	c.initialized = true
}

// Reset returns the cursor to its pre-iteration state and releases the world
// lock, flushing any operations queued during iteration.
func (c *Cursor) Reset() {
	c.archetypeIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matched = nil
	c.currentArchetype = nil
	if c.initialized {
		c.initialized = false
		c.world.Unlock()
	}
}

// Entity returns the entity id at the cursor position.
func (c *Cursor) Entity() EntityID {
	return c.currentArchetype.entities[c.entityIndex-1]
}

// View returns the archetype view at the cursor position.
func (c *Cursor) View() ArchetypeView {
	return ArchetypeView{reg: c.world.registry, a: c.currentArchetype}
}

func (c *Cursor) RemainingInArchetype() int {
	return c.remaining - c.entityIndex
}

// TotalMatched counts every entity the query matches. Called on a fresh
// cursor it is self-contained; called mid-iteration it counts without
// disturbing the iteration state.
func (c *Cursor) TotalMatched() int {
	fresh := !c.initialized
	if fresh {
		c.initialize()
	}
	total := 0
	for _, arch := range c.matched {
		total += arch.Len()
	}
	if fresh {
		c.Reset()
	}
	return total
}

package quarry

import (
	"iter"
	"slices"

	"github.com/TheBitDrifter/mask"
)

type archetypeID uint32

// archetype groups every entity whose component set is identical, storing
// their values in per-kind SoA columns. Archetypes are created on demand and
// never destroyed while the world lives, even when they empty out.
type archetype struct {
	id       archetypeID
	mask     mask.Mask
	kinds    []ComponentID
	entities []EntityID
	columns  [MaxComponentKinds]column
}

func newArchetype(reg *Registry, id archetypeID, m mask.Mask, kinds []ComponentID) *archetype {
	a := &archetype{
		id:    id,
		mask:  m,
		kinds: slices.Clone(kinds),
	}
	slices.Sort(a.kinds)
	for _, k := range a.kinds {
		a.columns[k] = reg.newColumn(k)
	}
	return a
}

func (a *archetype) ID() uint32 { return uint32(a.id) }

func (a *archetype) Len() int { return len(a.entities) }

func (a *archetype) hasKind(k ComponentID) bool { return a.columns[k] != nil }

// Kinds iterates the archetype's component kinds in ascending id order.
func (a *archetype) Kinds() iter.Seq[ComponentID] {
	return func(yield func(ComponentID) bool) {
		for _, k := range a.kinds {
			if !yield(k) {
				return
			}
		}
	}
}

// pushRow appends an entity with zero-valued components and returns its row.
func (a *archetype) pushRow(e EntityID) int {
	for _, k := range a.kinds {
		a.columns[k].extend()
	}
	a.entities = append(a.entities, e)
	return len(a.entities) - 1
}

// swapRemoveRow removes a row, backfilling it with the last row. It returns
// the entity that moved into the vacated row, or zero when the removed row
// was the last one.
func (a *archetype) swapRemoveRow(row int) EntityID {
	last := len(a.entities) - 1
	for _, k := range a.kinds {
		a.columns[k].swapRemove(row)
	}
	var moved EntityID
	if row != last {
		moved = a.entities[last]
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved
}

// transferRow moves one entity's shared component values into dst, zero
// extending any kinds dst has that the source lacks. It returns the
// destination row and the entity backfilled into the vacated source row.
func (a *archetype) transferRow(dst *archetype, row int) (dstRow int, moved EntityID) {
	e := a.entities[row]
	for _, k := range dst.kinds {
		if src := a.columns[k]; src != nil {
			src.copyRowTo(dst.columns[k], row)
		} else {
			dst.columns[k].extend()
		}
	}
	dst.entities = append(dst.entities, e)
	dstRow = len(dst.entities) - 1
	moved = a.swapRemoveRow(row)
	return dstRow, moved
}

package quarry

import "math"

// SpatialIndex is a uniform cell grid over entity positions for coarse
// proximity lookups. Owners rebuild it (Clear then Insert) rather than
// updating cells as entities move.
type SpatialIndex struct {
	cellSize float64
	cells    map[ChunkPos][]EntityID
	count    int
}

func newSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = ChunkSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[ChunkPos][]EntityID),
	}
}

// Insert adds the entity under the cell containing the position.
func (si *SpatialIndex) Insert(id EntityID, x, y, z float64) {
	cell := si.cellFor(x, y, z)
	si.cells[cell] = append(si.cells[cell], id)
	si.count++
}

// QueryRadius returns every entity in the cells overlapping the sphere. The
// result is cell-coarse: it can include entities beyond the radius, so
// callers needing exact distances filter afterwards.
func (si *SpatialIndex) QueryRadius(x, y, z, radius float64) []EntityID {
	var results []EntityID
	reach := int32(math.Ceil(radius/si.cellSize)) + 1
	center := si.cellFor(x, y, z)
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for dz := -reach; dz <= reach; dz++ {
				cell := ChunkPos{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
				results = append(results, si.cells[cell]...)
			}
		}
	}
	return results
}

// Clear empties every cell.
func (si *SpatialIndex) Clear() {
	clear(si.cells)
	si.count = 0
}

// Len reports how many entities the grid holds.
func (si *SpatialIndex) Len() int { return si.count }

func (si *SpatialIndex) cellFor(x, y, z float64) ChunkPos {
	return ChunkPos{
		X: int32(math.Floor(x / si.cellSize)),
		Y: int32(math.Floor(y / si.cellSize)),
		Z: int32(math.Floor(z / si.cellSize)),
	}
}

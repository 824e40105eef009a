package quarry

import (
	"math"
	"slices"
)

// ChunkSize is the spatial grouping cell edge length in world units.
const ChunkSize = 16

// ChunkPos is a scheduling group key: a world position floored to
// 16-unit cells per axis. Only equality matters; it is not a coordinate
// system.
type ChunkPos struct {
	X, Y, Z int32
}

// ChunkPosFromWorld maps a world-space position to its chunk key.
func ChunkPosFromWorld(x, y, z float64) ChunkPos {
	return ChunkPos{
		X: int32(math.Floor(x / ChunkSize)),
		Y: int32(math.Floor(y / ChunkSize)),
		Z: int32(math.Floor(z / ChunkSize)),
	}
}

// chunkGroup tracks the entities registered in one chunk. canParallel is
// sticky: it starts true and drops to false the moment a dependent entity
// joins; nothing lifts it except ReevaluateChunk or Clear.
type chunkGroup struct {
	pos         ChunkPos
	entities    []EntityID
	canParallel bool
}

func newChunkGroup(pos ChunkPos) *chunkGroup {
	return &chunkGroup{pos: pos, canParallel: true}
}

func (g *chunkGroup) add(id EntityID) {
	if slices.Contains(g.entities, id) {
		return
	}
	g.entities = append(g.entities, id)
}

func (g *chunkGroup) remove(id EntityID) {
	if i := slices.Index(g.entities, id); i >= 0 {
		g.entities = slices.Delete(g.entities, i, i+1)
	}
}

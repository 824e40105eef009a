package quarry

// TickBatch is one synchronization-bounded unit of scheduled work: either
// every chunk in it is parallel-eligible, or it is the single trailing
// sequential batch. Batches are built fresh each pass and never reused
// across ticks.
type TickBatch struct {
	ID          int
	Chunks      []ChunkPos
	EntityCount int
	Parallel    bool
}

// BuildBatches partitions the non-empty chunk groups into parallel-eligible
// and sequential sets, splits the parallel set into batches of roughly
// ceil(chunks/threads) chunks, and appends the whole sequential set as one
// final batch. The split is a coarse load-balancing heuristic over chunks,
// not entity counts. Exported so embedders and tests can inspect the plan
// without ticking.
func (s *scheduler) BuildBatches() []TickBatch {
	var parallelChunks, sequentialChunks []ChunkPos
	for pos, group := range s.groups {
		if len(group.entities) == 0 {
			continue
		}
		if group.canParallel {
			parallelChunks = append(parallelChunks, pos)
		} else {
			sequentialChunks = append(sequentialChunks, pos)
		}
	}

	var batches []TickBatch
	if len(parallelChunks) > 0 {
		per := (len(parallelChunks) + s.threads - 1) / s.threads
		if per < 1 {
			per = 1
		}
		for start := 0; start < len(parallelChunks); start += per {
			end := min(start+per, len(parallelChunks))
			window := parallelChunks[start:end:end]
			batches = append(batches, TickBatch{
				ID:          len(batches),
				Chunks:      window,
				EntityCount: s.entityCountFor(window),
				Parallel:    true,
			})
		}
	}
	if len(sequentialChunks) > 0 {
		batches = append(batches, TickBatch{
			ID:          len(batches),
			Chunks:      sequentialChunks,
			EntityCount: s.entityCountFor(sequentialChunks),
			Parallel:    false,
		})
	}

	s.counters.batches.Store(int64(len(batches)))
	return batches
}

func (s *scheduler) entityCountFor(chunks []ChunkPos) int {
	total := 0
	for _, pos := range chunks {
		if group, ok := s.groups[pos]; ok {
			total += len(group.entities)
		}
	}
	return total
}

func (s *scheduler) allParallel(chunks []ChunkPos) bool {
	for _, pos := range chunks {
		group, ok := s.groups[pos]
		if !ok || !group.canParallel {
			return false
		}
	}
	return true
}

package quarry

import (
	"fmt"
)

type operationType int

const (
	opCreate operationType = iota
	opAddComponent
	opRemoveComponent
	opDespawn
)

// operation is a deferred structural change. Component operations carry
// their write as a stored callback so typed values survive the queue without
// erasure.
type operation struct {
	typ    operationType
	amount int
	comps  []Component
	id     EntityID
	ids    []EntityID
	apply  func() error
}

type opQueue struct {
	createOps      []operation
	componentOps   []operation
	despawnOps     []operation
	pendingDespawn map[EntityID]struct{}
}

func newOpQueue() opQueue {
	return opQueue{
		pendingDespawn: make(map[EntityID]struct{}),
	}
}

// enqueueComponentOp records an add or remove to run on unlock. Operations
// against entities already queued for despawn are dropped.
func (q *opQueue) enqueueComponentOp(typ operationType, id EntityID, apply func() error) {
	if _, isDespawned := q.pendingDespawn[id]; isDespawned {
		return
	}
	q.componentOps = append(q.componentOps, operation{
		typ:   typ,
		id:    id,
		apply: apply,
	})
}

// enqueueDespawn records despawns to run on unlock, dropping duplicates and
// cancelling the entities' still-pending component operations.
func (q *opQueue) enqueueDespawn(ids []EntityID) {
	var fresh []EntityID
	for _, id := range ids {
		if _, exists := q.pendingDespawn[id]; exists {
			continue
		}
		q.pendingDespawn[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return
	}
	for i := range q.componentOps {
		if _, gone := q.pendingDespawn[q.componentOps[i].id]; gone {
			// Mark operation as no-op
			q.componentOps[i].typ = -1
		}
	}
	q.despawnOps = append(q.despawnOps, operation{
		typ: opDespawn,
		ids: fresh,
	})
}

func (w *world) processOperationQueue() error {
	if len(w.opQueue.createOps) == 0 &&
		len(w.opQueue.componentOps) == 0 &&
		len(w.opQueue.despawnOps) == 0 {
		return nil
	}

	// Process creates first
	for _, op := range w.opQueue.createOps {
		if _, err := w.NewEntities(op.amount, op.comps...); err != nil {
			return fmt.Errorf("failed to process queued entity creation: %w", err)
		}
	}

	// Process component modifications
	for _, op := range w.opQueue.componentOps {
		if op.typ != opAddComponent && op.typ != opRemoveComponent {
			continue
		}
		if err := op.apply(); err != nil {
			return fmt.Errorf("failed to apply queued component operation: %w", err)
		}
	}

	// Process despawns last
	for _, op := range w.opQueue.despawnOps {
		if err := w.Despawn(op.ids...); err != nil {
			return fmt.Errorf("failed to apply queued despawn: %w", err)
		}
	}

	// Clear all queues
	w.opQueue.createOps = w.opQueue.createOps[:0]
	w.opQueue.componentOps = w.opQueue.componentOps[:0]
	w.opQueue.despawnOps = w.opQueue.despawnOps[:0]
	clear(w.opQueue.pendingDespawn)
	return nil
}

package ecs

// World couples the entity Store with the side-table component registry and
// a deferred destruction queue flushed by the cleanup system each tick.
type World struct {
	store        *Store
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld(capacity int) *World {
	return &World{
		store:        NewStore(capacity),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 16),
	}
}

func (w *World) Store() *Store { return w.store }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) Alive(id EntityID) bool { return w.store.Alive(id) }

// MarkForDestruction queues an entity for end-of-tick cleanup. Queuing the
// same id twice is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending reports how many ids are queued for destruction.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue frees queued slots and drops their side-table data.
// It returns the ids that were actually alive.
func (w *World) FlushDestroyQueue() []EntityID {
	var freed []EntityID
	for _, id := range w.destroyQueue {
		if !w.store.Alive(id) {
			continue
		}
		w.registry.RemoveAll(id)
		w.store.MarkFree(id)
		freed = append(freed, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return freed
}

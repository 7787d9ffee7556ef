package coro

import "sync"

// globalRegistry tracks every live Task, for diagnostics. Tasks are always
// explicitly removed by Destroy, never garbage-collected out from under
// the registry, so a plain strong map is sufficient.
type taskRegistry struct {
	mu     sync.Mutex
	tasks  map[uint64]*Task
	nextID uint64
}

var globalRegistry = &taskRegistry{tasks: make(map[uint64]*Task)}

func (r *taskRegistry) add(t *Task) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.tasks[id] = t
	return id
}

func (r *taskRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// TaskSnapshot is a read-only diagnostic view of one registered task,
// returned by DumpTasks.
type TaskSnapshot struct {
	ID       uint64
	Complete bool
	PoolName string // "" if the task currently belongs to no pool
	RefCount int32
}

// DumpTasks returns a snapshot of every currently live task. It observes
// only; nothing in the runtime depends on it.
func DumpTasks() []TaskSnapshot {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	out := make([]TaskSnapshot, 0, len(globalRegistry.tasks))
	for id, t := range globalRegistry.tasks {
		pool := t.pool.Load()
		name := ""
		if pool != nil {
			name = pool.name
		}
		out = append(out, TaskSnapshot{
			ID:       id,
			Complete: t.complete.Load(),
			PoolName: name,
			RefCount: t.refcount.count(),
		})
	}
	return out
}

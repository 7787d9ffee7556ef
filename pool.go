package coro

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

const (
	poolInsertTotal = metricz.Key("pool.insert.total")
	poolEraseTotal  = metricz.Key("pool.erase.total")
	poolNTasks      = metricz.Key("pool.ntasks")
	poolQueueLength = metricz.Key("pool.queue_length")

	poolInsertSpan = tracez.Key("pool.insert")

	// PoolEventStarved fires when a worker finds the runnable list empty
	// and is about to block on the pool's waiting condition.
	PoolEventStarved = hookz.Key("pool.starved")

	// PoolEventInsert fires when a task is added to the pool.
	PoolEventInsert = hookz.Key("pool.insert")
	// PoolEventErase fires when a task is removed from the pool.
	PoolEventErase = hookz.Key("pool.erase")
	// PoolEventSwitch fires when a task moves from one pool to another.
	PoolEventSwitch = hookz.Key("pool.switch")
)

// PoolEvent is emitted on PoolEventStarved, PoolEventInsert,
// PoolEventErase, and PoolEventSwitch. TaskID is unset for
// PoolEventStarved, which has no single task to report.
type PoolEvent struct {
	PoolName string
	NTasks   int
	Waiters  int
	TaskID   uint64
}

// TaskPool is a collection of tasks sharing one runnable queue and one
// lock. Workers drain the queue through RunWorker (see worker.go) or by
// calling PopFront directly; tasks move themselves between pools through
// Switch.
type TaskPool struct {
	mu          sync.Mutex
	name        string
	waitingList *taskQueue
	ntasks      int
	waitingCond *Condition
	closed      bool

	refcount refcount

	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[PoolEvent]
}

// NewTaskPool creates an empty, named task pool.
func NewTaskPool(name string) *TaskPool {
	registry := metricz.New()
	registry.Counter(poolInsertTotal)
	registry.Counter(poolEraseTotal)
	registry.Gauge(poolNTasks)
	registry.Gauge(poolQueueLength)

	p := &TaskPool{
		name:        name,
		waitingList: newTaskQueue(),
		refcount:    newRefcount(),
		clock:       clockz.RealClock,
		metrics:     registry,
		tracer:      tracez.New(),
		hooks:       hookz.New[PoolEvent](),
	}
	p.waitingCond = NewCondition(&p.mu)
	return p
}

// WithClock overrides the pool's clock, intended for clockz.NewFakeClock()
// in tests.
func (p *TaskPool) WithClock(clock clockz.Clock) *TaskPool {
	p.clock = clock
	return p
}

// Locker exposes the pool's lock as a sync.Locker so callers that already
// hold it (wakeToPool) can detect re-entry and skip acquiring it twice.
func (p *TaskPool) Locker() sync.Locker { return &p.mu }

// Name returns the pool's label, used for diagnostics (DumpTasks).
func (p *TaskPool) Name() string { return p.name }

// NTasks returns the number of tasks currently counted as members of this
// pool, including tasks presently executing.
func (p *TaskPool) NTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ntasks
}

// Insert adds task to the pool's runnable list. Fails ErrInvalid if task
// already belongs to some pool.
func (p *TaskPool) Insert(task *Task) error {
	if task.pool.Load() != nil {
		return wrapErr("TaskPool.Insert", task.id, ErrInvalid)
	}

	ctx := context.Background()
	_, span := p.tracer.StartSpan(ctx, poolInsertSpan)
	defer span.Finish()

	p.mu.Lock()
	if task.pool.Load() != nil {
		p.mu.Unlock()
		return wrapErr("TaskPool.Insert", task.id, ErrInvalid)
	}
	p.ntasks++
	p.refcount.ref()
	task.pool.Store(p)
	p.waitingList.pushBack(task)
	queueLen := p.waitingList.length()
	ntasks := p.ntasks
	p.waitingCond.Signal()
	p.mu.Unlock()

	p.metrics.Counter(poolInsertTotal).Inc()
	p.metrics.Gauge(poolNTasks).Set(float64(ntasks))
	p.metrics.Gauge(poolQueueLength).Set(float64(queueLen))
	capitan.Info(ctx, SignalPoolInsert,
		FieldTaskID.Field(int(task.id)), FieldPoolName.Field(p.name), FieldNTasks.Field(ntasks),
		FieldQueueSize.Field(queueLen))
	if p.hooks.ListenerCount(PoolEventInsert) > 0 {
		_ = p.hooks.Emit(ctx, PoolEventInsert, PoolEvent{ //nolint:errcheck
			PoolName: p.name, NTasks: ntasks, TaskID: task.id,
		})
	}
	return nil
}

// Erase removes task from the pool, decrementing its task count. Fails
// ErrInvalid if task does not currently belong to this pool.
func (p *TaskPool) Erase(task *Task) error {
	p.mu.Lock()
	if task.pool.Load() != p {
		p.mu.Unlock()
		return wrapErr("TaskPool.Erase", task.id, ErrInvalid)
	}
	p.ntasks--
	if p.ntasks < 0 {
		panic("coro: pool ntasks went negative")
	}
	task.waitLink.erase()
	task.pool.Store(nil)
	ntasks := p.ntasks
	p.mu.Unlock()

	p.refcount.unref()
	p.metrics.Counter(poolEraseTotal).Inc()
	p.metrics.Gauge(poolNTasks).Set(float64(ntasks))
	capitan.Info(context.Background(), SignalPoolErase,
		FieldTaskID.Field(int(task.id)), FieldPoolName.Field(p.name), FieldNTasks.Field(ntasks))
	if p.hooks.ListenerCount(PoolEventErase) > 0 {
		_ = p.hooks.Emit(context.Background(), PoolEventErase, PoolEvent{ //nolint:errcheck
			PoolName: p.name, NTasks: ntasks, TaskID: task.id,
		})
	}
	return nil
}

// Reschedule re-enqueues an already-member task to the back of the
// runnable list without touching its task count. Used by Yield, by
// Task.Reschedule, and directly by callers that hold a task reference
// obtained some other way. Condition and Semaphore wakeups go through
// wakeToPool instead.
func (p *TaskPool) Reschedule(task *Task) error {
	p.mu.Lock()
	if task.pool.Load() != p {
		p.mu.Unlock()
		return wrapErr("TaskPool.Reschedule", task.id, ErrInvalid)
	}
	p.waitingList.pushBack(task)
	p.waitingCond.Signal()
	p.mu.Unlock()
	return nil
}

// PopFront removes and returns the head of the runnable list, or
// ErrEmpty. The pool's task count is unaffected: the task remains a pool
// member, merely off-queue while some worker runs it.
func (p *TaskPool) PopFront() (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.waitingList.popFront()
	if t == nil {
		return nil, wrapErr("TaskPool.PopFront", 0, ErrEmpty)
	}
	return t, nil
}

// waitForWork blocks until the runnable list is non-empty or the pool is
// closed, returning the task popped (nil if closed with nothing pending).
// This is the worker-facing half of the scheduling contract: under the
// pool's lock, wait on the pool's condition while the runnable list is
// empty and the pool is open, otherwise pop the head of the list.
func (p *TaskPool) waitForWork() (*Task, bool) {
	p.mu.Lock()

	// Report starvation once per call, with the spinlock released for the
	// duration: hooks run arbitrary caller code, and holding a non-reentrant
	// lock across that would deadlock a handler that touches this pool.
	if p.waitingList.empty() && !p.closed {
		name, ntasks, waiters := p.name, p.ntasks, p.waitingList.length()
		p.mu.Unlock()
		if p.hooks.ListenerCount(PoolEventStarved) > 0 {
			_ = p.hooks.Emit(context.Background(), PoolEventStarved, PoolEvent{ //nolint:errcheck
				PoolName: name,
				NTasks:   ntasks,
				Waiters:  waiters,
			})
		}
		capitan.Info(context.Background(), SignalPoolStarved, FieldPoolName.Field(name))
		p.mu.Lock()
	}

	for p.waitingList.empty() && !p.closed {
		if err := p.waitingCond.Wait(); err != nil {
			p.mu.Unlock()
			return nil, false
		}
	}
	defer p.mu.Unlock()
	if p.closed && p.waitingList.empty() {
		return nil, false
	}
	return p.waitingList.popFront(), true
}

// Close marks the pool as shutting down and wakes every worker parked in
// waitForWork so RunWorker loops can observe ctx cancellation promptly.
// Tasks already inserted are not evicted; Close only stops new waiting.
func (p *TaskPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.waitingCond.Broadcast()
	p.mu.Unlock()
}

// OnStarved registers a handler invoked whenever a worker finds the pool's
// runnable list empty.
func (p *TaskPool) OnStarved(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventStarved, handler)
	return err
}

// OnInsert registers a handler invoked whenever a task is added to the pool.
func (p *TaskPool) OnInsert(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventInsert, handler)
	return err
}

// OnErase registers a handler invoked whenever a task is removed from the
// pool.
func (p *TaskPool) OnErase(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventErase, handler)
	return err
}

// OnSwitch registers a handler invoked whenever a task moves into this pool
// via Switch.
func (p *TaskPool) OnSwitch(handler func(context.Context, PoolEvent) error) error {
	_, err := p.hooks.Hook(PoolEventSwitch, handler)
	return err
}

// Switch moves the calling task from its current pool (if any) into
// newPool, then yields so control returns to whichever worker picks it up
// out of newPool. Must be called from task context, and newPool must
// differ from the task's current pool.
func Switch(newPool *TaskPool) (prevPool *TaskPool, err error) {
	t := currentTask()
	if t == nil {
		return nil, wrapErr("Switch", 0, ErrInvalid)
	}
	prev := t.pool.Load()
	if prev == newPool {
		return nil, wrapErr("Switch", t.id, ErrInvalid)
	}

	if prev != nil {
		if err := prev.Erase(t); err != nil {
			return nil, err
		}
	}
	if err := newPool.Insert(t); err != nil {
		return prev, err
	}

	ctx := context.Background()
	var fromName, toName string
	if prev != nil {
		fromName = prev.name
	}
	toName = newPool.name
	capitan.Info(ctx, SignalPoolSwitch, FieldTaskID.Field(int(t.id)),
		FieldPoolName.Field(fromName+"->"+toName))
	if newPool.hooks.ListenerCount(PoolEventSwitch) > 0 {
		_ = newPool.hooks.Emit(ctx, PoolEventSwitch, PoolEvent{ //nolint:errcheck
			PoolName: toName, NTasks: newPool.NTasks(), TaskID: t.id,
		})
	}

	return prev, Suspend()
}

// wakeToPool re-enqueues a popped waiter task onto its owning pool's
// runnable list, skipping a redundant lock acquisition when the pool's
// lock IS the lock the caller already holds (avoiding self-deadlock). It
// never touches the pool's task count: the task remained a pool member
// the whole time it was parked.
func wakeToPool(t *Task, held sync.Locker) {
	pool := t.pool.Load()
	if pool == nil {
		panic("coro: waiter has no owning pool to resume into")
	}

	skip := sameLocker(pool.Locker(), held)
	if !skip {
		pool.mu.Lock()
	}
	pool.waitingList.pushBack(t)
	pool.waitingCond.Signal()
	if !skip {
		pool.mu.Unlock()
	}
}

// sameLocker reports whether a and b are the same underlying lock, used
// to avoid acquiring a lock the caller already holds.
func sameLocker(a, b sync.Locker) bool {
	return a == b
}

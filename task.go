package coro

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Package-level observability, shared across every Task instance: one
// registry and tracer rather than one per task, since tasks are created
// far more often and more cheaply than the objects a per-instance
// registry would usually track.
const (
	taskCreatedTotal  = metricz.Key("task.created.total")
	taskExecutedTotal = metricz.Key("task.executed.total")
	taskCompleteTotal = metricz.Key("task.complete.total")

	taskExecuteSpan = tracez.Key("task.execute")

	// TaskEventComplete is the hookz key a Task's completion fires under.
	TaskEventComplete = hookz.Key("task.complete")
)

var (
	taskMetrics = metricz.New()
	taskTracer  = tracez.New()
)

func init() {
	taskMetrics.Counter(taskCreatedTotal)
	taskMetrics.Counter(taskExecutedTotal)
	taskMetrics.Counter(taskCompleteTotal)
}

// TaskEvent is emitted through a Task's hooks when its entry function
// returns.
type TaskEvent struct {
	ID        uint64
	Result    int
	Duration  time.Duration
	Timestamp time.Time
}

// TaskFunc is the user-supplied entry point run on a task's dedicated
// goroutine.
type TaskFunc func(arg any) int

// Task is a cooperatively scheduled coroutine with a dedicated goroutine
// standing in for a private execution stack. Control passes between a
// task and whichever goroutine is running its Execute method through a
// pair of unbuffered channels, so at most one of the two is ever runnable
// at a time.
type Task struct {
	id uint64

	// resumeCh/suspendCh hand control back and forth: sending on one and
	// receiving on the other blocks the sender (preserving its goroutine
	// stack) while the counterpart runs.
	resumeCh  chan struct{}
	suspendCh chan struct{}

	entry TaskFunc
	arg   any

	result   atomic.Int64
	complete atomic.Bool

	// mu is the executor-exclusion lock: held by whichever goroutine is
	// inside Execute, for the entire span between handing control to the
	// task and the task suspending or finishing.
	mu sync.Mutex

	// pool is read without the owning pool's lock held in a few
	// diagnostic/fast paths (DumpTasks, a condition's waiter lookup), so
	// it is an atomic pointer rather than a plain field guarded only by
	// that lock. Every write still happens with the owning pool's lock
	// held.
	pool atomic.Pointer[TaskPool]

	waitLink taskLink
	refcount refcount

	clock clockz.Clock
	hooks *hookz.Hooks[TaskEvent]
}

// NewTask allocates a task and spawns its dedicated goroutine, which
// immediately parks waiting for the first Execute call. stackSize is
// accepted for API parity with callers porting fixed-stack-size code but
// is otherwise unused: a goroutine's stack grows and shrinks on demand,
// so there is no fixed buffer to size. The deepest call chain still must
// fit within Go's own growable-stack limit.
func NewTask(entry TaskFunc, arg any, stackSize int32) (*Task, error) {
	if entry == nil {
		return nil, wrapErr("NewTask", 0, ErrInvalid)
	}
	_ = stackSize // kept for API parity, not sized.

	t := &Task{
		resumeCh:  make(chan struct{}),
		suspendCh: make(chan struct{}),
		entry:     entry,
		arg:       arg,
		refcount:  newRefcount(),
		clock:     clockz.RealClock,
		hooks:     hookz.New[TaskEvent](),
	}
	t.waitLink.task = t
	t.waitLink.selfLoop()

	t.id = globalRegistry.add(t)
	taskMetrics.Counter(taskCreatedTotal).Inc()
	capitan.Info(context.Background(), SignalTaskCreated, FieldTaskID.Field(int(t.id)))

	go t.run()
	return t, nil
}

// run is the task's trampoline. It owns the task's dedicated goroutine
// for its entire lifetime: the current-task lookup is set once here and
// cleared once on the way out, since (unlike a worker thread) this
// goroutine never runs any other task.
func (t *Task) run() {
	setCurrentTask(t)
	defer clearCurrentTask()

	<-t.resumeCh // wait for the first Execute

	start := t.clock.Now()
	result := t.entry(t.arg)
	t.result.Store(int64(result))
	t.complete.Store(true)

	if pool := t.pool.Load(); pool != nil {
		_ = pool.Erase(t)
	}
	if t.waitLink.linked() {
		panic("coro: task finished with a non-empty wait link")
	}

	taskMetrics.Counter(taskCompleteTotal).Inc()
	duration := t.clock.Now().Sub(start)
	if t.hooks.ListenerCount(TaskEventComplete) > 0 {
		_ = t.hooks.Emit(context.Background(), TaskEventComplete, TaskEvent{ //nolint:errcheck
			ID:        t.id,
			Result:    result,
			Duration:  duration,
			Timestamp: t.clock.Now(),
		})
	}
	capitan.Info(context.Background(), SignalTaskComplete,
		FieldTaskID.Field(int(t.id)), FieldResult.Field(result), FieldDuration.Field(duration.Seconds()))

	// The dedicated goroutine returns here rather than parking forever, so
	// it doesn't leak. Execute's receive from suspendCh completes the
	// handoff the same way either way.
	t.suspendCh <- struct{}{}
}

// Execute runs (or resumes) task on the calling goroutine until it
// suspends or finishes. Precondition: task.Complete must be false, and
// the caller must not itself be running inside a task — both violations
// return ErrInvalid rather than panicking, since they are contract
// violations a caller can reasonably check for.
func (t *Task) Execute() error {
	if t.complete.Load() {
		return wrapErr("Task.Execute", t.id, ErrInvalid)
	}
	if currentTask() != nil {
		return wrapErr("Task.Execute", t.id, ErrInvalid)
	}

	t.refcount.ref()
	defer t.refcount.unref()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.complete.Load() {
		return wrapErr("Task.Execute", t.id, ErrInvalid)
	}

	_, span := taskTracer.StartSpan(context.Background(), taskExecuteSpan)
	defer span.Finish()

	t.resumeCh <- struct{}{}
	<-t.suspendCh

	taskMetrics.Counter(taskExecutedTotal).Inc()
	capitan.Info(context.Background(), SignalTaskExecuted, FieldTaskID.Field(int(t.id)))
	return nil
}

// Suspend parks the calling task, handing control back to whichever
// goroutine is inside Execute. Returns ErrInvalid if called from outside
// any task's dedicated goroutine.
func Suspend() error {
	t := currentTask()
	if t == nil {
		return wrapErr("Suspend", 0, ErrInvalid)
	}
	t.suspendCh <- struct{}{}
	<-t.resumeCh
	return nil
}

// Yield re-enqueues the current task to the back of its pool's runnable
// list (if it has one) and suspends, guaranteeing it will be picked up
// again by some worker; a task with no pool simply suspends, now parked
// on no list at all until a direct Execute resumes it or an Insert puts
// it on a pool's runnable list. Called from thread (non-task) context, Yield degrades
// to the OS thread yield and always reports success.
func Yield() error {
	t := currentTask()
	if t == nil {
		runtime.Gosched()
		return nil
	}
	if t.complete.Load() {
		return wrapErr("Yield", t.id, ErrInvalid)
	}
	if pool := t.pool.Load(); pool != nil {
		if err := pool.Reschedule(t); err != nil {
			return err
		}
	}
	return Suspend()
}

// Reschedule re-enqueues an already-incomplete task to the back of its
// pool's runnable list without suspending the caller. It is a thin alias
// over TaskPool.Reschedule kept on Task for symmetry with
// Execute/Suspend/Yield.
func (t *Task) Reschedule() error {
	pool := t.pool.Load()
	if pool == nil {
		return nil
	}
	return pool.Reschedule(t)
}

// Complete reports whether the task's entry function has returned.
func (t *Task) Complete() bool { return t.complete.Load() }

// Result returns the value the entry function returned. Only meaningful
// once Complete() is true.
func (t *Task) Result() int { return int(t.result.Load()) }

// ID returns the task's registry identifier, primarily useful for
// diagnostics (DumpTasks) and log correlation.
func (t *Task) ID() uint64 { return t.id }

// OnComplete registers a handler invoked once, asynchronously, after the
// task's entry function returns.
func (t *Task) OnComplete(handler func(context.Context, TaskEvent) error) error {
	_, err := t.hooks.Hook(TaskEventComplete, handler)
	return err
}

// WithClock overrides the clock used for this task's duration
// measurements, intended for deterministic tests via
// clockz.NewFakeClock(). It has no effect on scheduling, only on what
// TaskEvent.Duration and TaskEvent.Timestamp report.
func (t *Task) WithClock(clock clockz.Clock) *Task {
	t.clock = clock
	return t
}

// Destroy releases a task's resources. Permitted only once its refcount
// is down to the caller's own handle, it belongs to no pool, and its wait
// link is empty — and never from within the task's own goroutine.
// Destroy does not check whether the task has completed. For a completed
// task the dedicated goroutine has already exited, since run returns
// immediately after completion; for one that has not, the goroutine stays
// parked waiting for an Execute. Either way Destroy only retires the
// registry entry.
func (t *Task) Destroy() error {
	if currentTask() == t {
		return wrapErr("Task.Destroy", t.id, ErrInvalid)
	}
	if t.refcount.count() > 1 {
		panic("coro: Task.Destroy called with outstanding references")
	}
	if t.pool.Load() != nil {
		panic("coro: Task.Destroy called while still a pool member")
	}
	if t.waitLink.linked() {
		panic("coro: Task.Destroy called with a non-empty wait link")
	}

	globalRegistry.remove(t.id)
	capitan.Info(context.Background(), SignalTaskDestroyed, FieldTaskID.Field(int(t.id)))
	return nil
}

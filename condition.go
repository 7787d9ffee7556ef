package coro

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
)

// ConditionEventWakeup fires whenever Signal or Broadcast wakes a task
// waiter.
const ConditionEventWakeup = hookz.Key("condition.wakeup")

// ConditionEvent is emitted on ConditionEventWakeup.
type ConditionEvent struct {
	TaskID uint64
}

// Condition is a hybrid condition variable: one caller-supplied external
// lock serializes the protected predicate for both a population of task
// waiters and a population of plain goroutine waiters. Task waiters are
// linked into list via their own wait link (no allocation); goroutine
// waiters block on an ordinary sync.Cond paired with the condition's own
// internal mutex.
type Condition struct {
	lock sync.Locker // external spinlock; not owned, only referenced

	mu     sync.Mutex
	osCond *sync.Cond
	list   *taskQueue

	hooks *hookz.Hooks[ConditionEvent]
}

// NewCondition binds a Condition to the external lock that serializes its
// protected predicate. lock must be held by the caller around every Wait,
// Signal, and Broadcast call.
func NewCondition(lock sync.Locker) *Condition {
	c := &Condition{lock: lock, list: newTaskQueue(), hooks: hookz.New[ConditionEvent]()}
	c.osCond = sync.NewCond(&c.mu)
	return c
}

// OnWakeup registers a handler invoked whenever a task waiter is woken by
// Signal or Broadcast.
func (c *Condition) OnWakeup(handler func(context.Context, ConditionEvent) error) error {
	_, err := c.hooks.Hook(ConditionEventWakeup, handler)
	return err
}

// Wait releases the external lock and blocks the caller until a Signal or
// Broadcast wakes it, then re-acquires the external lock before returning.
// Precondition: the external lock is held. Called from a task, it parks
// via the task's own suspend/resume channels; called from a goroutine not
// running as any task, it blocks on the internal sync.Cond.
func (c *Condition) Wait() error {
	if t := currentTask(); t != nil {
		c.list.pushBack(t)
		c.lock.Unlock()
		capitan.Info(context.Background(), SignalConditionWait, FieldTaskID.Field(int(t.id)))
		err := Suspend()
		c.lock.Lock()
		return err
	}

	c.mu.Lock()
	c.lock.Unlock()
	c.osCond.Wait()
	c.mu.Unlock()
	c.lock.Lock()
	return nil
}

// wakeupFirst pops the front of list (if any) and resumes it through its
// owning pool. Returns false if list was empty.
func (c *Condition) wakeupFirst(list *taskQueue) bool {
	t := list.popFront()
	if t == nil {
		return false
	}
	wakeToPool(t, c.lock)
	if c.hooks.ListenerCount(ConditionEventWakeup) > 0 {
		_ = c.hooks.Emit(context.Background(), ConditionEventWakeup, ConditionEvent{TaskID: t.id}) //nolint:errcheck
	}
	return true
}

// Signal wakes one waiter, preferring a task waiter over a goroutine
// waiter when both are present. Precondition: the external lock is held.
func (c *Condition) Signal() {
	if c.wakeupFirst(c.list) {
		capitan.Info(context.Background(), SignalConditionSignal, FieldWaiters.Field(c.list.length()))
		return
	}
	c.mu.Lock()
	c.osCond.Signal()
	c.mu.Unlock()
	capitan.Info(context.Background(), SignalConditionSignal, FieldWaiters.Field(0))
}

// Broadcast wakes every waiter, task and goroutine alike. The task waiter
// list is spliced into a local copy first, since draining it touches each
// waiter's own pool's lock and a live list must not be mutated while that
// happens; the copy is then drained by repeated wakeupFirst calls, and
// goroutine waiters are woken last via the internal sync.Cond.
// Precondition: the external lock is held.
func (c *Condition) Broadcast() {
	local := newTaskQueue()
	local.moveFrom(c.list)

	woken := 0
	for c.wakeupFirst(local) {
		woken++
	}

	c.mu.Lock()
	c.osCond.Broadcast()
	c.mu.Unlock()

	capitan.Info(context.Background(), SignalConditionBroadcast, FieldWaiters.Field(woken))
}

package coro

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

const (
	semUpTotal   = metricz.Key("semaphore.up.total")
	semDownTotal = metricz.Key("semaphore.down.total")
	semCount     = metricz.Key("semaphore.count")

	// SemaphoreEventHandoff fires when Up hands its unit directly to a
	// waiting task instead of incrementing the available count.
	SemaphoreEventHandoff = hookz.Key("semaphore.handoff")
)

// SemaphoreEvent is emitted on SemaphoreEventHandoff.
type SemaphoreEvent struct {
	TaskID uint64
}

// Semaphore is a hybrid counting semaphore: it parks only tasks (never a
// raw goroutine), re-injecting a woken task into its own owning pool's
// runnable list on Up — sharing wakeToPool with Condition, since both
// describe the same "pop a waiter, hand it back to its pool" operation.
//
// A parked task's pool membership accounting is untouched by semaphore
// traffic in either direction: Down never adjusts a pool's task count,
// and Up's re-insertion through wakeToPool likewise never touches it.
type Semaphore struct {
	mu          sync.Mutex
	count       int
	waitingList *taskQueue

	metrics *metricz.Registry
	hooks   *hookz.Hooks[SemaphoreEvent]
}

// NewSemaphore creates a semaphore with the given non-negative initial
// count. Fails ErrInvalid if initial is negative.
func NewSemaphore(initial int) (*Semaphore, error) {
	if initial < 0 {
		return nil, wrapErr("NewSemaphore", 0, ErrInvalid)
	}
	registry := metricz.New()
	registry.Counter(semUpTotal)
	registry.Counter(semDownTotal)
	registry.Gauge(semCount)
	registry.Gauge(semCount).Set(float64(initial))

	return &Semaphore{
		count:       initial,
		waitingList: newTaskQueue(),
		metrics:     registry,
		hooks:       hookz.New[SemaphoreEvent](),
	}, nil
}

// OnHandoff registers a handler invoked whenever Up hands its unit
// directly to a waiting task.
func (s *Semaphore) OnHandoff(handler func(context.Context, SemaphoreEvent) error) error {
	_, err := s.hooks.Hook(SemaphoreEventHandoff, handler)
	return err
}

// Up releases one unit. If a task is waiting, it is popped and resumed
// into its owning pool's runnable list instead of incrementing count.
func (s *Semaphore) Up() {
	s.mu.Lock()
	t := s.waitingList.popFront()
	if t == nil {
		s.count++
		n := s.count
		s.mu.Unlock()
		s.metrics.Counter(semUpTotal).Inc()
		s.metrics.Gauge(semCount).Set(float64(n))
		capitan.Info(context.Background(), SignalSemaphoreUp, FieldResult.Field(n))
		return
	}
	s.mu.Unlock()

	wakeToPool(t, nil)
	s.metrics.Counter(semUpTotal).Inc()
	capitan.Info(context.Background(), SignalSemaphoreUp, FieldTaskID.Field(int(t.id)))
	if s.hooks.ListenerCount(SemaphoreEventHandoff) > 0 {
		_ = s.hooks.Emit(context.Background(), SemaphoreEventHandoff, SemaphoreEvent{TaskID: t.id}) //nolint:errcheck
	}
}

// Down acquires one unit, blocking (suspending) the calling task if none
// is available. Must be called from task context; returns ErrInvalid
// otherwise.
func (s *Semaphore) Down() error {
	t := currentTask()
	if t == nil {
		return wrapErr("Semaphore.Down", 0, ErrInvalid)
	}

	s.mu.Lock()
	if s.count > 0 {
		s.count--
		n := s.count
		s.mu.Unlock()
		s.metrics.Counter(semDownTotal).Inc()
		s.metrics.Gauge(semCount).Set(float64(n))
		capitan.Info(context.Background(), SignalSemaphoreDown, FieldTaskID.Field(int(t.id)))
		return nil
	}
	s.waitingList.pushBack(t)
	s.mu.Unlock()

	s.metrics.Counter(semDownTotal).Inc()
	capitan.Info(context.Background(), SignalSemaphoreDown, FieldTaskID.Field(int(t.id)))
	return Suspend()
}

// Count returns the current available count (diagnostic only; may be
// stale the instant it returns under concurrent use).
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

package coro

import "github.com/zoobzio/capitan"

// Signal constants for runtime lifecycle events, named <component>.<event>.
// These form the runtime's structured-logging substrate: capitan.Info/
// Warn/Error calls at these points are the observable trail an operator
// would otherwise reach for a logger to get.
const (
	// Task signals.
	SignalTaskCreated  capitan.Signal = "task.created"
	SignalTaskExecuted capitan.Signal = "task.executed"
	SignalTaskComplete capitan.Signal = "task.complete"
	SignalTaskDestroyed capitan.Signal = "task.destroyed"

	// TaskPool signals.
	SignalPoolInsert  capitan.Signal = "pool.insert"
	SignalPoolErase   capitan.Signal = "pool.erase"
	SignalPoolSwitch  capitan.Signal = "pool.switch"
	SignalPoolStarved capitan.Signal = "pool.starved"

	// Condition signals.
	SignalConditionWait      capitan.Signal = "condition.wait"
	SignalConditionSignal    capitan.Signal = "condition.signal"
	SignalConditionBroadcast capitan.Signal = "condition.broadcast"

	// Semaphore signals.
	SignalSemaphoreUp   capitan.Signal = "semaphore.up"
	SignalSemaphoreDown capitan.Signal = "semaphore.down"
)

// Common field keys attached to the signals above.
var (
	FieldTaskID    = capitan.NewIntKey("task_id")
	FieldPoolName  = capitan.NewStringKey("pool_name")
	FieldNTasks    = capitan.NewIntKey("ntasks")
	FieldQueueSize = capitan.NewIntKey("queue_size")
	FieldResult    = capitan.NewIntKey("result")
	FieldDuration  = capitan.NewFloat64Key("duration_seconds")
	FieldWaiters   = capitan.NewIntKey("waiters")
)

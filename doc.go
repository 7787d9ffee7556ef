// Package coro provides a hybrid M:N coroutine runtime: cooperatively
// scheduled tasks with their own control-flow state, multiplexed onto a
// small number of worker goroutines through task pools, plus a condition
// variable that can park either a task or a plain goroutine and a
// semaphore that parks tasks.
//
// # Core Concepts
//
//   - Task: a coroutine created with an entry function and an argument.
//     Its dedicated goroutine stands in for a private execution stack;
//     Execute runs (or resumes) it until it suspends or finishes, Suspend
//     parks it, and Yield re-enqueues it onto its pool before parking.
//   - TaskPool: a named collection of runnable tasks. Insert/Erase manage
//     membership; PopFront hands the next runnable task to a worker;
//     Switch lets a task move itself between pools.
//   - Condition: a hybrid condition variable. Wait/Signal/Broadcast serve
//     both task waiters (re-enqueued onto their owning pool on wakeup)
//     and goroutine waiters (blocked on an ordinary sync.Cond), all under
//     one caller-supplied external lock.
//   - Semaphore: a hybrid counting semaphore that parks only tasks,
//     handing a released unit directly to a waiting task's pool instead
//     of incrementing its count.
//
// # Worker loop
//
// RunWorker implements the scheduling contract a TaskPool expects of its
// workers: pop a runnable task, execute it, repeat, until the pool is
// closed or the context is canceled. Callers needing finer control can
// drive TaskPool.PopFront and Task.Execute directly instead.
//
// # Observability
//
// Every lifecycle event (task creation, execution, pool membership
// changes, condition wakeups, semaphore transfers) is reported through
// capitan signals, and counters/gauges/spans/hooks are available on Task,
// TaskPool, and Semaphore for callers that want metrics, tracing, or
// event subscriptions rather than just a log line. DumpTasks offers a
// point-in-time diagnostic snapshot of every live task.
package coro

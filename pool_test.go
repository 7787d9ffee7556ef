package coro

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTaskPool_InsertEraseAccounting(t *testing.T) {
	pool := NewTaskPool("p")
	task, err := NewTask(func(arg any) int { return 0 }, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	if err := pool.Insert(task); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if pool.NTasks() != 1 {
		t.Fatalf("expected ntasks 1, got %d", pool.NTasks())
	}
	if task.pool.Load() != pool {
		t.Fatal("expected task.pool to point at pool")
	}

	if err := pool.Insert(task); err == nil {
		t.Fatal("expected duplicate Insert to fail")
	}

	popped, err := pool.PopFront()
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if popped != task {
		t.Fatal("expected PopFront to return the inserted task")
	}
	// ntasks unaffected by pop_front.
	if pool.NTasks() != 1 {
		t.Fatalf("expected ntasks to remain 1 after PopFront, got %d", pool.NTasks())
	}

	if err := pool.Erase(task); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if pool.NTasks() != 0 {
		t.Fatalf("expected ntasks 0 after Erase, got %d", pool.NTasks())
	}
	if task.pool.Load() != nil {
		t.Fatal("expected task.pool to be cleared after Erase")
	}

	if err := pool.Erase(task); err == nil {
		t.Fatal("expected Erase on a non-member to fail")
	}
}

func TestTaskPool_RoundTripViaWorker(t *testing.T) {
	pool := NewTaskPool("workers")
	task, err := NewTask(func(arg any) int {
		return arg.(int) + 1
	}, 41, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := pool.Insert(task); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	popped, err := pool.PopFront()
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if err := popped.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !task.Complete() || task.Result() != 42 {
		t.Fatalf("expected complete task with result 42, got complete=%v result=%d",
			task.Complete(), task.Result())
	}
	// task_main erases itself from its pool on completion.
	if pool.NTasks() != 0 {
		t.Fatalf("expected ntasks 0 after task completed, got %d", pool.NTasks())
	}
	if task.pool.Load() != nil {
		t.Fatal("expected task.pool cleared after self-erase on completion")
	}
}

func TestTaskPool_YieldReenqueues(t *testing.T) {
	pool := NewTaskPool("yielders")
	yielded := false
	task, err := NewTask(func(arg any) int {
		if err := Yield(); err != nil {
			return -1
		}
		yielded = true
		return 1
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := pool.Insert(task); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	first, err := pool.PopFront()
	if err != nil {
		t.Fatalf("PopFront 1: %v", err)
	}
	if err := first.Execute(); err != nil {
		t.Fatalf("Execute 1: %v", err)
	}
	if yielded {
		t.Fatal("expected task parked before reaching past Yield")
	}
	// Yield must have pushed the task back onto the runnable list.
	if pool.waitingList.empty() {
		t.Fatal("expected task re-enqueued onto the runnable list after Yield")
	}

	second, err := pool.PopFront()
	if err != nil {
		t.Fatalf("PopFront 2: %v", err)
	}
	if second != task {
		t.Fatal("expected the same task to come back around")
	}
	if err := second.Execute(); err != nil {
		t.Fatalf("Execute 2: %v", err)
	}
	if !yielded || task.Result() != 1 {
		t.Fatalf("expected task to finish after Yield resumed, yielded=%v result=%d",
			yielded, task.Result())
	}
}

func TestSwitch_MovesBetweenPools(t *testing.T) {
	p1 := NewTaskPool("p1")
	p2 := NewTaskPool("p2")

	var prevSeen *TaskPool
	task, err := NewTask(func(arg any) int {
		prev, err := Switch(p2)
		if err != nil {
			return -1
		}
		prevSeen = prev
		return 0
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := p1.Insert(task); err != nil {
		t.Fatalf("Insert into p1: %v", err)
	}

	popped, err := p1.PopFront()
	if err != nil {
		t.Fatalf("PopFront from p1: %v", err)
	}
	if err := popped.Execute(); err != nil {
		t.Fatalf("Execute (first leg, through Switch): %v", err)
	}

	if task.pool.Load() != p2 {
		t.Fatal("expected task.pool to be p2 after Switch")
	}
	if p1.NTasks() != 0 {
		t.Fatalf("expected p1.ntasks 0 after Switch, got %d", p1.NTasks())
	}
	if p2.NTasks() != 1 {
		t.Fatalf("expected p2.ntasks 1 after Switch, got %d", p2.NTasks())
	}

	// Resume it out of p2 to completion.
	popped2, err := p2.PopFront()
	if err != nil {
		t.Fatalf("PopFront from p2: %v", err)
	}
	if err := popped2.Execute(); err != nil {
		t.Fatalf("Execute (second leg): %v", err)
	}
	if prevSeen != p1 {
		t.Fatal("expected Switch to report p1 as the previous pool")
	}
	if !task.Complete() {
		t.Fatal("expected task complete after resuming out of p2")
	}
}

func TestTaskPool_Hooks(t *testing.T) {
	pool := NewTaskPool("hooked")

	var mu sync.Mutex
	var inserted, erased, switched []uint64
	if err := pool.OnInsert(func(_ context.Context, ev PoolEvent) error {
		mu.Lock()
		inserted = append(inserted, ev.TaskID)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("OnInsert: %v", err)
	}
	if err := pool.OnErase(func(_ context.Context, ev PoolEvent) error {
		mu.Lock()
		erased = append(erased, ev.TaskID)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("OnErase: %v", err)
	}

	other := NewTaskPool("other")
	if err := other.OnSwitch(func(_ context.Context, ev PoolEvent) error {
		mu.Lock()
		switched = append(switched, ev.TaskID)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("OnSwitch: %v", err)
	}

	task, err := NewTask(func(arg any) int {
		_, err := Switch(other)
		if err != nil {
			return -1
		}
		return 0
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := pool.Insert(task); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	popped, err := pool.PopFront()
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if err := popped.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Wait for async hooks.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(inserted) != 1 || inserted[0] != task.id {
		t.Fatalf("expected OnInsert to fire with task id %d, got %v", task.id, inserted)
	}
	if len(erased) != 1 || erased[0] != task.id {
		t.Fatalf("expected OnErase to fire with task id %d, got %v", task.id, erased)
	}
	if len(switched) != 1 || switched[0] != task.id {
		t.Fatalf("expected OnSwitch to fire with task id %d, got %v", task.id, switched)
	}
}

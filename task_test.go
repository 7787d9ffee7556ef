package coro

import (
	"testing"
)

func TestTask_RoundTrip(t *testing.T) {
	task, err := NewTask(func(arg any) int {
		return arg.(int) + 1
	}, 41, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	if err := task.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !task.Complete() {
		t.Fatal("expected task to be complete")
	}
	if task.Result() != 42 {
		t.Fatalf("expected result 42, got %d", task.Result())
	}

	if err := task.Execute(); err == nil {
		t.Fatal("expected Execute on a complete task to fail")
	}
}

func TestTask_SuspendThenResume(t *testing.T) {
	resumed := false
	task, err := NewTask(func(arg any) int {
		if err := Suspend(); err != nil {
			t.Errorf("Suspend: %v", err)
		}
		resumed = true
		return 7
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	if err := task.Execute(); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if task.Complete() {
		t.Fatal("expected task to still be suspended, not complete")
	}
	if resumed {
		t.Fatal("did not expect entry to have resumed past Suspend yet")
	}

	if err := task.Execute(); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !task.Complete() {
		t.Fatal("expected task to be complete after second Execute")
	}
	if task.Result() != 7 {
		t.Fatalf("expected result 7, got %d", task.Result())
	}
	if !resumed {
		t.Fatal("expected entry to resume past Suspend on second Execute")
	}
}

func TestTask_ExecuteFromInsideTaskFails(t *testing.T) {
	inner, err := NewTask(func(arg any) int { return 1 }, nil, 0)
	if err != nil {
		t.Fatalf("NewTask inner: %v", err)
	}

	var innerErr error
	outer, err := NewTask(func(arg any) int {
		innerErr = inner.Execute()
		return 0
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask outer: %v", err)
	}

	if err := outer.Execute(); err != nil {
		t.Fatalf("Execute outer: %v", err)
	}
	if innerErr == nil {
		t.Fatal("expected Execute called from inside a task to fail")
	}
}

func TestTask_DestroyRules(t *testing.T) {
	task, err := NewTask(func(arg any) int { return 0 }, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := task.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := task.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestTask_YieldWithoutPoolSuspendsDirectly(t *testing.T) {
	reachedAfterYield := false
	task, err := NewTask(func(arg any) int {
		if err := Yield(); err != nil {
			t.Errorf("Yield: %v", err)
		}
		reachedAfterYield = true
		return 0
	}, nil, 0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	if err := task.Execute(); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if reachedAfterYield {
		t.Fatal("expected task to be parked after Yield with no pool")
	}

	if err := task.Execute(); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !reachedAfterYield {
		t.Fatal("expected task to resume past Yield on second Execute")
	}
}

package coro

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// currentTaskRegistry tracks which Task, if any, owns each goroutine, as a
// goroutine-ID-keyed map — the analogue of a thread-local "current task"
// pointer. Built directly on runtime.Stack + strconv, the standard
// technique for recovering a goroutine's ID.
//
// Since a task's dedicated goroutine never changes for the task's whole
// lifetime (see task.go), the entry is set once at goroutine start and
// cleared once at goroutine exit, rather than on every resume.
var currentTaskRegistry sync.Map // goroutineID uint64 -> *Task

func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		panic("coro: could not parse goroutine id: " + err.Error())
	}
	return id
}

func setCurrentTask(t *Task) {
	currentTaskRegistry.Store(goroutineID(), t)
}

func clearCurrentTask() {
	currentTaskRegistry.Delete(goroutineID())
}

// currentTask returns the Task whose dedicated goroutine is the caller, or
// nil if the caller is plain thread (goroutine) context.
func currentTask() *Task {
	v, ok := currentTaskRegistry.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Task)
}

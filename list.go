package coro

// taskLink is the intrusive linkage embedded in every Task, admitting
// membership in exactly one queue at a time: a pool's runnable list, a
// condition's waiter list, or a semaphore's waiter list. An unlinked node
// is an empty self-loop, the common sentinel-circular-list technique for
// allocation-free queue membership. container/list would need a separate
// heap-allocated Element per queue a task could ever join, which defeats
// the allocation-free cross-queue move wakeToPool depends on.
type taskLink struct {
	next, prev *taskLink
	task       *Task
}

func (l *taskLink) selfLoop() { l.next, l.prev = l, l }

func (l *taskLink) linked() bool { return l.next != l }

// erase unlinks l from whatever queue holds it and resets it to an empty
// self-loop. Safe to call on an already-unlinked node (no-op).
func (l *taskLink) erase() {
	if !l.linked() {
		return
	}
	l.prev.next = l.next
	l.next.prev = l.prev
	l.selfLoop()
}

// taskQueue is a FIFO of tasks linked through their taskLink, implemented as
// a circular doubly linked list with a sentinel head node — so erase never
// needs a reference back to the owning queue, matching the original C list.
type taskQueue struct {
	sentinel taskLink
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.sentinel.selfLoop()
	return q
}

func (q *taskQueue) empty() bool { return q.sentinel.next == &q.sentinel }

// length walks the list; only used for diagnostics/tests, never the hot path.
func (q *taskQueue) length() int {
	n := 0
	for l := q.sentinel.next; l != &q.sentinel; l = l.next {
		n++
	}
	return n
}

// pushBack links t at the tail of q. If t is currently linked elsewhere (or
// elsewhere in q), it is erased first — this makes re-enqueuing a task
// idempotent with respect to its position in the list.
func (q *taskQueue) pushBack(t *Task) {
	l := &t.waitLink
	l.erase()
	l.prev = q.sentinel.prev
	l.next = &q.sentinel
	q.sentinel.prev.next = l
	q.sentinel.prev = l
	l.task = t
}

// popFront removes and returns the head of q, or nil if q is empty.
func (q *taskQueue) popFront() *Task {
	if q.empty() {
		return nil
	}
	l := q.sentinel.next
	l.erase()
	return l.task
}

// moveFrom detaches src's entire contents into q in O(1), leaving src empty.
// Used by Condition.Broadcast to splice the live waiter list into a local
// copy before draining it (see condition.go for why).
func (q *taskQueue) moveFrom(src *taskQueue) {
	if src.empty() {
		return
	}
	first, last := src.sentinel.next, src.sentinel.prev
	first.prev = &q.sentinel
	last.next = &q.sentinel
	q.sentinel.next = first
	q.sentinel.prev = last
	src.sentinel.selfLoop()
}

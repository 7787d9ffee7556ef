package coro

import "sync/atomic"

// refcount is a minimal atomic shared-ownership counter, used by both
// Task and TaskPool to track outstanding references.
type refcount struct {
	n atomic.Int32
}

func newRefcount() refcount {
	var r refcount
	r.n.Store(1)
	return r
}

func (r *refcount) ref() int32   { return r.n.Add(1) }
func (r *refcount) unref() int32 { return r.n.Add(-1) }
func (r *refcount) count() int32 { return r.n.Load() }

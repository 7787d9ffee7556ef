package coro

import "context"

// RunWorker implements the worker-facing scheduling loop: repeatedly wait
// for a runnable task and execute it, until ctx is canceled or pool is
// closed. It is a convenience — nothing else in the package requires
// callers to use it; a caller may instead drive TaskPool.PopFront
// directly, e.g. to interleave a pool with other work on the same
// goroutine.
//
// RunWorker returns nil when pool.Close is called and the runnable list
// has drained, or ctx.Err() when ctx is canceled first.
func RunWorker(ctx context.Context, pool *TaskPool) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pool.Close()
		case <-done:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, ok := pool.waitForWork()
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}
		if err := task.Execute(); err != nil {
			return err
		}
	}
}

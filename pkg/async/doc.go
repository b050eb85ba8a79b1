// Package async runs background work off the request path.
//
// Go starts a single detached task with a timeout and panic recovery. Pool
// is a fixed set of workers behind a bounded queue; Submit never blocks and
// reports ErrQueueFull so callers can fall back to doing the work inline.
//
//	pool := async.NewPool(ctx, logger, "audit", 4, 1024, 5*time.Second)
//	defer pool.Shutdown(shutdownCtx)
//
//	if err := pool.Submit(func(ctx context.Context) error {
//		return store.Log(ctx, event)
//	}); err != nil {
//		_ = store.Log(ctx, event)
//	}
package async

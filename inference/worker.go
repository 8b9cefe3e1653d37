package inference

import (
	"context"
	"sync/atomic"
)

// RunDropping hands items from in to a single worker goroutine, dropping every
// item that arrives while the worker is busy.
//
// The worker is marked busy when an item is accepted and idle again once handle
// returns. An idle worker always accepts the next item, including the first one.
// Dropped items are passed to drop (which may be nil) so the caller can release them.
//
// Arguments:
//   - ctx: Stops the loop. It is also passed to handle so in-flight work can be cancelled.
//   - in: The source of items. Closing it stops the loop.
//   - handle: Processes one item on the worker goroutine.
//   - drop: Receives items that arrived while the worker was busy.
//
// Returns:
//   - error: ctx.Err() if the context ended the loop, nil if in was closed.
//     The in-flight item, if any, has finished by the time RunDropping returns.
func RunDropping[T any](
	ctx context.Context,
	in <-chan T,
	handle func(context.Context, T),
	drop func(T),
) error {
	// The slot is empty whenever busy is false, so the send below never blocks.
	work := make(chan T, 1)
	done := make(chan struct{})
	var busy atomic.Bool

	go func() {
		defer close(done)
		for item := range work {
			handle(ctx, item)
			busy.Store(false)
		}
	}()
	defer func() {
		close(work)
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-in:
			if !ok {
				return nil
			}
			if busy.CompareAndSwap(false, true) {
				work <- item
				continue
			}
			if drop != nil {
				drop(item)
			}
		}
	}
}

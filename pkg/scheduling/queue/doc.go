/*
Package queue provides an unbounded, goroutine-safe FIFO queue with a
context-aware blocking receive.

It is the backing store for the lanes of the background scheduler: producers
call Push from any goroutine and never block, while a worker loop alternates
between a blocking Pop (while idle) and TryPop (to drain a burst in a single
wake-up).

Basic usage:

	q := queue.New[string]()
	_ = q.Push("a")
	_ = q.Push("b")

	item, err := q.Pop(ctx) // "a"
	for {
		next, ok := q.TryPop()
		if !ok {
			break
		}
		handle(next)
	}

Cancellation:

Pop returns ctx.Err() when the context ends before an item arrives, so a
consumer can tell "stop requested" apart from "item available". After Close,
Push and Pop return ErrClosed and remaining items are dropped.
*/
package queue

package spider

import (
	"context"
	"io"
	"sync"
)

// Queue represents a crawl queue.
//
// The queue must be thread-safe.
type Queue interface {
	// Enqueue enqueues the given set of items.
	//
	// The method returns an io.EOF if the queue was
	// closed and a context error if the context was
	// canceled.
	//
	// The queue does not de-duplicate, the engine does
	// before calling the method.
	Enqueue(ctx context.Context, items ...Item) error

	// Dequeue dequeues an item.
	//
	// The method blocks until an item is available, the queue
	// is closed or the context is canceled. It returns io.EOF
	// if the queue was closed.
	//
	// Every dequeued item must be acknowledged with Done.
	Dequeue(ctx context.Context) (Item, error)

	// Done acknowledges a dequeued item.
	Done(item Item)

	// Wait blocks until the queue is drained.
	//
	// The queue is drained when no items are pending
	// and every dequeued item was acknowledged. The method
	// returns io.EOF if the queue was closed first and a
	// context error if the context was canceled.
	Wait(ctx context.Context) error

	// Close closes the queue.
	//
	// Any pending items are discarded and all blocked
	// Dequeue and Wait calls return.
	Close() error
}

// MemoryQueue implements a naive in-memory queue.
type memoryQueue struct {
	pending  []Item
	inflight int
	cond     *sync.Cond
	stopped  bool
}

// MemoryQueue returns a new FIFO memory queue.
func MemoryQueue(size int) Queue {
	if size < 0 {
		size = 0
	}

	return &memoryQueue{
		pending: make([]Item, 0, size),
		cond:    sync.NewCond(&sync.Mutex{}),
	}
}

// Enqueue implementation.
func (mq *memoryQueue) Enqueue(ctx context.Context, items ...Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mq.cond.L.Lock()
	defer mq.cond.L.Unlock()

	if mq.stopped {
		return io.EOF
	}

	if len(items) == 0 {
		return nil
	}

	mq.pending = append(mq.pending, items...)
	mq.cond.Broadcast()

	return nil
}

// Dequeue implementation.
func (mq *memoryQueue) Dequeue(ctx context.Context) (Item, error) {
	defer mq.wake(ctx)()

	mq.cond.L.Lock()
	defer mq.cond.L.Unlock()

	for len(mq.pending) == 0 && !mq.stopped && ctx.Err() == nil {
		mq.cond.Wait()
	}

	if mq.stopped {
		return Item{}, io.EOF
	}

	if err := ctx.Err(); err != nil {
		return Item{}, err
	}

	item := mq.pending[0]
	mq.pending[0] = Item{}
	mq.pending = mq.pending[1:]
	mq.inflight++

	return item, nil
}

// Done implementation.
func (mq *memoryQueue) Done(Item) {
	mq.cond.L.Lock()
	defer mq.cond.L.Unlock()

	if mq.inflight > 0 {
		mq.inflight--
	}

	if mq.drained() {
		mq.cond.Broadcast()
	}
}

// Wait implementation.
func (mq *memoryQueue) Wait(ctx context.Context) error {
	defer mq.wake(ctx)()

	mq.cond.L.Lock()
	defer mq.cond.L.Unlock()

	for !mq.drained() && !mq.stopped && ctx.Err() == nil {
		mq.cond.Wait()
	}

	switch {
	case mq.stopped:
		return io.EOF
	case mq.drained():
		return nil
	default:
		return ctx.Err()
	}
}

// Close implementation.
func (mq *memoryQueue) Close() error {
	mq.cond.L.Lock()
	defer mq.cond.L.Unlock()

	mq.stopped = true
	mq.pending = mq.pending[:0]
	mq.cond.Broadcast()

	return nil
}

// Drained returns true when nothing is pending or in flight.
//
// The caller must hold the lock.
func (mq *memoryQueue) drained() bool {
	return len(mq.pending) == 0 && mq.inflight == 0
}

// Wake broadcasts when ctx is done so that blocked
// waiters can observe the cancelation.
//
// The returned func must be called once the caller
// is done waiting.
func (mq *memoryQueue) wake(ctx context.Context) func() {
	stop := context.AfterFunc(ctx, func() {
		mq.cond.L.Lock()
		mq.cond.Broadcast()
		mq.cond.L.Unlock()
	})
	return func() { stop() }
}

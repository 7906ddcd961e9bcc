package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionClosed is returned for calls submitted after Close.
var ErrSessionClosed = errors.New("session closed")

// call is one unit of session work.
type call struct {
	fn   func()
	done chan struct{}
}

// callQueue is an unbounded FIFO of calls. Any goroutine may enqueue; only
// the worker dequeues.
type callQueue struct {
	mu     sync.Mutex
	calls  []call
	closed bool
	signal chan struct{} // buffered, size 1; closed on Close
}

func newCallQueue() *callQueue {
	return &callQueue{
		calls:  make([]call, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends c. It returns false once the queue is closed.
func (q *callQueue) Enqueue(c call) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.calls = append(q.calls, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// next pops the front call. done is true when the queue is closed and
// drained.
func (q *callQueue) next() (c call, ok, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return call{}, false, q.closed
	}
	c = q.calls[0]
	q.calls[0] = call{}
	if len(q.calls) == 1 {
		q.calls = q.calls[:0]
	} else {
		q.calls = q.calls[1:]
	}
	return c, true, false
}

// Wait signals that calls may be available. The channel is closed by
// Close.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued calls.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Close stops accepting calls. Calls already queued still run.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// worker runs calls one at a time on its own goroutine. Every mutation of
// a session's tree happens on that goroutine.
type worker struct {
	queue   *callQueue
	stopped chan struct{}
}

func startWorker() *worker {
	w := &worker{queue: newCallQueue(), stopped: make(chan struct{})}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.stopped)
	for {
		c, ok, done := w.queue.next()
		if done {
			return
		}
		if !ok {
			<-w.queue.Wait()
			continue
		}
		c.fn()
		close(c.done)
	}
}

// do runs fn on the worker and waits for it. If ctx ends first, do returns
// ctx.Err() without waiting; fn still runs and should check ctx itself.
func (w *worker) do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	if !w.queue.Enqueue(c) {
		return ErrSessionClosed
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop closes the queue and waits for queued calls to finish.
func (w *worker) stop() {
	w.queue.Close()
	<-w.stopped
}

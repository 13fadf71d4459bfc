package tsfn

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
)

// Acquire adds a producer reference. It fails once shutdown has begun.
func (q *Queue[T]) Acquire() error {
	if q == nil {
		return errors.InvalidArgument(errors.PhaseAcquire, "nil queue")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateOpen {
		return errors.GenericFailure(errors.PhaseAcquire, q.name, "queue is "+q.state.String())
	}
	q.threadCount++
	return nil
}

// Release drops a producer reference.
//
// Releasing the last reference, or releasing with ReleaseAbort, moves an
// open queue to closing. Releasing more references than were held is a
// protocol error. A producer that still holds a reference may release it
// after the queue closed; that never restarts shutdown.
func (q *Queue[T]) Release(mode ReleaseMode) error {
	if q == nil {
		return errors.InvalidArgument(errors.PhaseRelease, "nil queue")
	}
	if mode != ReleaseNormal && mode != ReleaseAbort {
		return errors.New(errors.PhaseRelease, errors.KindInvalidArgument).
			Name(q.name).
			Value(int(mode)).
			Detail("unknown release mode %d", int(mode)).
			Build()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.threadCount == 0 {
		return errors.GenericFailure(errors.PhaseRelease, q.name, "released more times than acquired")
	}
	q.threadCount--

	if q.threadCount == 0 || mode == ReleaseAbort {
		q.beginClosingLocked(mode == ReleaseAbort)
	}
	return nil
}

// Drop aborts the queue without touching the producer count. Handle tables
// call it when they are torn down with queues still open.
func (q *Queue[T]) Drop() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.beginClosingLocked(true)
}

// Ref makes the queue keep its owner running.
func (q *Queue[T]) Ref() error {
	if q == nil {
		return errors.InvalidArgument(errors.PhaseRef, "nil queue")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StateClosed || q.refed {
		return nil
	}
	q.refed = true
	q.waker.Ref()
	return nil
}

// Unref lets the owner exit even while this queue is open.
func (q *Queue[T]) Unref() error {
	if q == nil {
		return errors.InvalidArgument(errors.PhaseRef, "nil queue")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StateClosed || !q.refed {
		return nil
	}
	q.refed = false
	q.waker.Unref()
	return nil
}

// beginClosingLocked moves Open to Closing once, wakes blocked producers
// and schedules the owner to drain and finalize. Caller holds q.mu.
func (q *Queue[T]) beginClosingLocked(abort bool) {
	if q.state != StateOpen {
		return
	}
	q.state = StateClosing
	q.aborted = abort
	q.notFull.Broadcast()
	q.waker.Send()

	q.logger.Debug("threadsafe function closing",
		zap.Bool("aborted", abort),
		zap.Int("pending", q.pending.Len()),
		zap.Int("thread_count", q.threadCount),
	)
}

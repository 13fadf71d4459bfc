package tsfn

import (
	"github.com/wippyai/wasm-tsfn/errors"
)

// Call enqueues item for the owner goroutine.
//
// On a full bounded queue ModeNonBlocking fails with a queue-full error and
// ModeBlocking waits until the owner frees a slot or the queue starts
// closing. A closing or closed queue rejects items in both modes.
//
// When the waker is a LocalWaker, a ModeBlocking call made on the owner
// goroutine against a full queue fails with a would-deadlock error, since
// only the owner can free a slot.
func (q *Queue[T]) Call(item T, mode CallMode) error {
	if q == nil {
		return errors.InvalidArgument(errors.PhaseCall, "nil queue")
	}
	if mode != ModeBlocking && mode != ModeNonBlocking {
		return errors.New(errors.PhaseCall, errors.KindInvalidArgument).
			Name(q.name).
			Value(int(mode)).
			Detail("unknown call mode %d", int(mode)).
			Build()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.state != StateOpen {
			return errors.Closing(errors.PhaseCall, q.name)
		}
		if q.maxSize == 0 || q.pending.Len() < q.maxSize {
			break
		}
		if mode == ModeNonBlocking {
			return errors.QueueFull(q.name, q.maxSize)
		}
		if lw, ok := q.waker.(LocalWaker); ok && lw.InLoop() {
			return errors.WouldDeadlock(errors.PhaseCall, q.name, q.maxSize)
		}
		q.notFull.Wait()
	}

	q.pending.Push(item)
	q.waker.Send()
	return nil
}

package tsfn

import (
	"go.uber.org/zap"
)

// dispatch is the waker callback. It runs only on the owner goroutine,
// so the owner never delivers two items at once.
func (q *Queue[T]) dispatch() {
	for i := 0; i < MaxDispatchPerWake; i++ {
		q.mu.Lock()
		item, ok := q.pending.Pop()
		if !ok {
			if q.state == StateClosing && !q.finalizing {
				q.finalizing = true
				q.mu.Unlock()
				q.finish()
				return
			}
			q.mu.Unlock()
			return
		}
		if q.maxSize > 0 {
			q.notFull.Signal()
		}
		q.mu.Unlock()

		q.invoke(item)
	}

	// Budget spent: yield to other owner work and come back.
	q.mu.Lock()
	more := q.pending.Len() > 0 || (q.state == StateClosing && !q.finalizing)
	q.mu.Unlock()
	if more {
		q.waker.Send()
	}
}

func (q *Queue[T]) invoke(item T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("threadsafe function callback panicked", zap.Any("panic", r))
		}
	}()
	q.call(q.context, item)
}

// finish runs the finalizer while the queue is still closing, then marks
// it closed and unregisters the waker.
func (q *Queue[T]) finish() {
	q.logger.Debug("threadsafe function finalizing", zap.Bool("aborted", q.Aborted()))
	q.runFinalizer()

	q.mu.Lock()
	q.state = StateClosed
	q.mu.Unlock()

	q.waker.Close()
}

func (q *Queue[T]) runFinalizer() {
	if q.finalize == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("threadsafe function finalizer panicked", zap.Any("panic", r))
		}
	}()
	q.finalize(q.finalizeData, q.context)
}

// Package tsfn implements threadsafe functions: bounded call queues that let
// many producer goroutines hand items to one owner goroutine.
//
// # Lifecycle
//
// A queue moves through three states, never backwards:
//
//	Open     accepts Call; Acquire and Release adjust the producer count
//	Closing  rejects Call; the owner keeps draining pending items
//	Closed   drained and finalized; the waker is unregistered
//
// The queue enters Closing when the producer count reaches zero or when any
// producer calls Release(ReleaseAbort). Once Closing and empty, the owner
// runs Config.Finalize exactly once and moves to Closed.
//
// # Owner
//
// The queue does not own a goroutine. It registers a Waker with an Owner
// (typically a loop.Loop adapted by package env) and every Call sends the
// waker. The owner then drains items one at a time, invoking Config.Call
// outside the queue lock, so callbacks may call back into the same queue.
//
//	q, err := tsfn.New(owner, tsfn.Config[*Frame]{
//	    Name:               "frames",
//	    Call:               func(_ any, f *Frame) { render(f) },
//	    MaxQueueSize:       64,
//	    InitialThreadCount: 1,
//	})
//
//	// producer goroutine
//	if err := q.Call(frame, tsfn.ModeBlocking); errors.Is(err, errs.ErrClosing) {
//	    return
//	}
//	q.Release(tsfn.ReleaseNormal)
//
// # Backpressure
//
// With MaxQueueSize > 0, a full queue rejects ModeNonBlocking calls with a
// queue-full error and parks ModeBlocking callers until the owner frees a
// slot or shutdown begins. MaxQueueSize 0 never rejects.
//
// # Keep-alive
//
// Ref and Unref decide whether an open queue alone keeps the owner running.
// They are independent of the producer count.
package tsfn

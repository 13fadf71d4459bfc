package loop

import (
	"sync/atomic"

	"github.com/wippyai/wasm-tsfn/errors"
)

// Async is a wake-up handle: any goroutine may Send it, and its callback
// runs on the loop goroutine. Sends made before the callback runs are
// coalesced into one call; a Send made while the callback runs schedules
// another call.
type Async struct {
	loop    *Loop
	cb      func()
	pending atomic.Bool
	closed  atomic.Bool
	refed   bool // guarded by loop.mu
}

// NewAsync registers a referenced handle that runs cb when sent.
func (l *Loop) NewAsync(cb func()) (*Async, error) {
	if cb == nil {
		return nil, errors.InvalidArgument(errors.PhaseLoop, "nil async callback")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoopClosed
	}
	a := &Async{loop: l, cb: cb, refed: true}
	l.handles[a] = struct{}{}
	l.refs++
	return a, nil
}

// Send schedules the callback. It never blocks.
func (a *Async) Send() {
	if a.closed.Load() || a.pending.Swap(true) {
		return
	}

	l := a.loop
	l.mu.Lock()
	if a.closed.Load() {
		l.mu.Unlock()
		return
	}
	l.ready = append(l.ready, a)
	l.mu.Unlock()

	l.signal()
}

// Ref makes the handle keep the loop alive.
func (a *Async) Ref() {
	l := a.loop
	l.mu.Lock()
	if !a.closed.Load() && !a.refed {
		a.refed = true
		l.refs++
	}
	l.mu.Unlock()
}

// Unref lets the loop exit while this handle is still open.
func (a *Async) Unref() {
	l := a.loop
	l.mu.Lock()
	if a.refed {
		a.refed = false
		l.refs--
	}
	l.mu.Unlock()
	l.signal()
}

// HasRef reports whether the handle keeps the loop alive.
func (a *Async) HasRef() bool {
	a.loop.mu.Lock()
	defer a.loop.mu.Unlock()
	return a.refed
}

// InLoop reports whether the caller runs on the goroutine that runs this
// handle's callback.
func (a *Async) InLoop() bool {
	return a.loop.InLoop()
}

// Close unregisters the handle. Pending sends are discarded.
func (a *Async) Close() {
	if a.closed.Swap(true) {
		return
	}

	l := a.loop
	l.mu.Lock()
	if a.refed {
		a.refed = false
		l.refs--
	}
	if l.handles != nil {
		delete(l.handles, a)
	}
	l.mu.Unlock()

	l.signal()
}

// Closed reports whether Close was called on the handle or its loop.
func (a *Async) Closed() bool {
	return a.closed.Load()
}

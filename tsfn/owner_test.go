package tsfn

import (
	"fmt"
	"sync"

	"github.com/wippyai/wasm-tsfn/loop"
)

// manualOwner hands out wakers that only run when the test drains them.
type manualOwner struct {
	fail  error
	waker *manualWaker
}

func (o *manualOwner) NewWaker(onWake func()) (Waker, error) {
	if o.fail != nil {
		return nil, o.fail
	}
	o.waker = &manualWaker{onWake: onWake, refed: true}
	return o.waker, nil
}

type manualWaker struct {
	mu     sync.Mutex
	onWake func()
	sends  int
	total  int
	refed  bool
	closed bool
}

func (w *manualWaker) Send() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.sends++
	w.total++
}

func (w *manualWaker) Ref() {
	w.mu.Lock()
	w.refed = true
	w.mu.Unlock()
}

func (w *manualWaker) Unref() {
	w.mu.Lock()
	w.refed = false
	w.mu.Unlock()
}

func (w *manualWaker) Close() {
	w.mu.Lock()
	w.closed = true
	w.refed = false
	w.mu.Unlock()
}

// wakeOnce runs the callback once if a send is outstanding.
func (w *manualWaker) wakeOnce() bool {
	w.mu.Lock()
	if w.closed || w.sends == 0 {
		w.mu.Unlock()
		return false
	}
	w.sends = 0
	w.mu.Unlock()
	w.onWake()
	return true
}

// drain wakes until no sends remain.
func (w *manualWaker) drain() {
	for w.wakeOnce() {
	}
}

func (w *manualWaker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *manualWaker) isRefed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refed
}

func (w *manualWaker) totalSends() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// loopOwner adapts a loop.Loop to Owner.
type loopOwner struct {
	l *loop.Loop
}

func (o loopOwner) NewWaker(onWake func()) (Waker, error) {
	a, err := o.l.NewAsync(onWake)
	if err != nil {
		return nil, fmt.Errorf("new async: %w", err)
	}
	return a, nil
}

package loop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
)

var (
	// ErrLoopClosed is returned when registering work on a closed loop.
	ErrLoopClosed = errors.New(errors.PhaseLoop, errors.KindLoopClosed).Detail("loop is closed").Build()

	// ErrLoopRunning is returned when Run is called while the loop runs,
	// including re-entrant calls from a loop callback.
	ErrLoopRunning = errors.New(errors.PhaseLoop, errors.KindLoopRunning).Detail("loop is already running").Build()
)

// Mode selects how long Run keeps going.
type Mode int

const (
	// RunDefault runs until nothing keeps the loop alive or ctx is done.
	RunDefault Mode = iota
	// RunOnce processes ready work, blocking for one batch if none is ready.
	RunOnce
	// RunNoWait processes ready work and returns without blocking.
	RunNoWait
)

// Loop is a single-goroutine owner context.
//
// Work reaches it through posted tasks and Async handles. Referenced
// handles keep RunDefault from returning even when idle; unreferenced
// ones only run when sent.
type Loop struct {
	_ [0]func()

	mu      sync.Mutex
	tasks   []func()
	spare   []func()
	ready   []*Async
	handles map[*Async]struct{}
	refs    int
	closed  bool

	wake    chan struct{}
	running atomic.Bool
	goid    atomic.Uint64
	logger  *zap.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		handles: make(map[*Async]struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = Logger()
	}
	return l
}

// Post schedules task to run on the loop goroutine.
func (l *Loop) Post(task func()) error {
	if task == nil {
		return errors.InvalidArgument(errors.PhaseLoop, "nil task")
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Alive reports whether a referenced handle or queued work remains.
func (l *Loop) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aliveLocked()
}

func (l *Loop) aliveLocked() bool {
	return l.refs > 0 || len(l.tasks) > 0 || len(l.ready) > 0
}

// InLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) InLoop() bool {
	id := l.goid.Load()
	return id != 0 && id == goroutineID()
}

// Run drives the loop on the calling goroutine, which stays pinned to its
// OS thread until Run returns.
func (l *Loop) Run(ctx context.Context, mode Mode) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.goid.Store(goroutineID())
	defer l.goid.Store(0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		did := l.tick()

		switch mode {
		case RunNoWait:
			return nil
		case RunOnce:
			if did || !l.Alive() {
				return nil
			}
			if err := l.wait(ctx); err != nil {
				return err
			}
			l.tick()
			return nil
		}

		if !l.Alive() {
			return nil
		}
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
}

// Close unregisters every handle and drops queued tasks. A running loop
// returns once its current batch finishes.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	for a := range l.handles {
		a.closed.Store(true)
		a.refed = false
	}
	dropped := len(l.tasks)
	l.handles = nil
	l.refs = 0
	l.tasks = nil
	l.ready = nil
	l.mu.Unlock()

	l.logger.Debug("loop closed", zap.Int("dropped_tasks", dropped))
	l.signal()
	return nil
}

func (l *Loop) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.wake:
		return nil
	}
}

// signal wakes Run. The one-slot channel coalesces bursts; Run always
// re-checks state after waking, so a stale token only costs one tick.
func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// tick runs queued tasks, then sent handles. It reports whether anything ran.
func (l *Loop) tick() bool {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = l.spare[:0]
	ready := l.ready
	l.ready = nil
	l.mu.Unlock()

	for _, t := range tasks {
		l.safeExecute(t)
	}
	ran := len(tasks) > 0
	for i := range tasks {
		tasks[i] = nil
	}
	l.mu.Lock()
	l.spare = tasks[:0]
	l.mu.Unlock()

	for _, a := range ready {
		a.pending.Store(false)
		if a.closed.Load() {
			continue
		}
		l.safeExecute(a.cb)
		ran = true
	}
	return ran
}

func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// goroutineID parses the current goroutine's ID from its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

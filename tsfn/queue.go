package tsfn

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
	"github.com/wippyai/wasm-tsfn/tsfn/internal/ring"
)

// Queue hands items from any number of producer goroutines to a single
// owner goroutine.
//
// Producers hold references counted by InitialThreadCount, Acquire and
// Release. When the last reference is released (or any producer aborts)
// the queue stops accepting items, the owner drains what is left, runs
// the finalizer once and unregisters its waker.
type Queue[T any] struct {
	mu      sync.Mutex
	notFull *sync.Cond
	pending *ring.Buffer[T]
	waker   Waker
	logger  *zap.Logger

	context      any
	call         CallFunc[T]
	finalize     FinalizeFunc
	finalizeData any
	name         string
	maxSize      int

	threadCount int
	state       State
	refed       bool
	aborted     bool
	finalizing  bool
}

// New creates an open queue drained by owner.
func New[T any](owner Owner, cfg Config[T]) (*Queue[T], error) {
	if owner == nil {
		return nil, errors.InvalidArgument(errors.PhaseCreate, "owner is required")
	}
	if cfg.Call == nil {
		return nil, errors.InvalidArgument(errors.PhaseCreate, "call callback is required")
	}
	if cfg.Name == "" {
		return nil, errors.InvalidArgument(errors.PhaseCreate, "resource name is required")
	}
	if cfg.InitialThreadCount < 1 || cfg.InitialThreadCount > MaxThreadCount {
		return nil, errors.New(errors.PhaseCreate, errors.KindInvalidArgument).
			Name(cfg.Name).
			Value(cfg.InitialThreadCount).
			Detail("initial thread count %d outside [1, %d]", cfg.InitialThreadCount, MaxThreadCount).
			Build()
	}
	if cfg.MaxQueueSize < 0 {
		return nil, errors.New(errors.PhaseCreate, errors.KindInvalidArgument).
			Name(cfg.Name).
			Value(cfg.MaxQueueSize).
			Detail("negative max queue size %d", cfg.MaxQueueSize).
			Build()
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	q := &Queue[T]{
		pending:      ring.New[T](cfg.MaxQueueSize),
		logger:       log.With(zap.String("tsfn", cfg.Name)),
		context:      cfg.Context,
		call:         cfg.Call,
		finalize:     cfg.Finalize,
		finalizeData: cfg.FinalizeData,
		name:         cfg.Name,
		maxSize:      cfg.MaxQueueSize,
		threadCount:  cfg.InitialThreadCount,
		state:        StateOpen,
		refed:        true,
	}
	q.notFull = sync.NewCond(&q.mu)

	w, err := owner.NewWaker(q.dispatch)
	if err != nil {
		return nil, errors.New(errors.PhaseCreate, errors.KindGenericFailure).
			Name(cfg.Name).
			Cause(err).
			Detail("register owner waker").
			Build()
	}
	q.waker = w

	q.logger.Debug("threadsafe function created",
		zap.Int("max_queue_size", q.maxSize),
		zap.Int("thread_count", q.threadCount),
	)
	return q, nil
}

// Name returns the queue label.
func (q *Queue[T]) Name() string {
	return q.name
}

// Context returns the value supplied as Config.Context.
// The field is written once at construction, so no lock is taken.
func (q *Queue[T]) Context() (any, error) {
	if q == nil {
		return nil, errors.InvalidArgument(errors.PhaseContext, "nil queue")
	}
	return q.context, nil
}

// State returns the current lifecycle state.
func (q *Queue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Len returns the number of items waiting for the owner.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Cap returns the configured capacity, 0 for unbounded.
func (q *Queue[T]) Cap() int {
	return q.maxSize
}

// ThreadCount returns the number of outstanding producer references.
func (q *Queue[T]) ThreadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.threadCount
}

// Aborted reports whether shutdown was started by ReleaseAbort.
func (q *Queue[T]) Aborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// Refed reports whether the queue keeps its owner alive.
func (q *Queue[T]) Refed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.refed
}

package env

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/errors"
	"github.com/wippyai/wasm-tsfn/loop"
	"github.com/wippyai/wasm-tsfn/resource"
	"github.com/wippyai/wasm-tsfn/tsfn"
)

// TypeThreadsafeFunction is the table type ID of threadsafe function handles.
const TypeThreadsafeFunction uint32 = 1

// Handle identifies a threadsafe function inside one Env.
type Handle = resource.Handle

// CreateOptions describes a threadsafe function created through an Env.
type CreateOptions struct {
	// Name labels the function in errors and logs. Required.
	Name string

	// Context is returned by GetThreadsafeFunctionContext and passed to
	// Call and Finalize.
	Context any

	// Call is invoked on the loop goroutine once per item. Required.
	Call tsfn.CallFunc[any]

	// Finalize runs on the loop goroutine after the function drained.
	Finalize tsfn.FinalizeFunc

	// FinalizeData is passed to Finalize.
	FinalizeData any

	// MaxQueueSize bounds pending items; 0 is unbounded.
	MaxQueueSize int

	// InitialThreadCount is the number of producers holding the function,
	// in [1, tsfn.MaxThreadCount].
	InitialThreadCount int
}

// Env is the embedder-facing surface: threadsafe functions owned by one
// loop and addressed by handle.
type Env struct {
	loop     *loop.Loop
	table    *resource.Table
	logger   *zap.Logger
	observer handleLogger
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the Env logger. Queues created by the Env inherit it.
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		e.logger = l
	}
}

// New creates an Env whose threadsafe functions are drained by l.
func New(l *loop.Loop, opts ...Option) *Env {
	e := &Env{
		loop:  l,
		table: resource.NewTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = Logger()
	}
	e.observer = handleLogger{logger: e.logger}
	e.table.Subscribe(e.observer)
	return e
}

// Loop returns the owner loop.
func (e *Env) Loop() *loop.Loop {
	return e.loop
}

// Len returns the number of live threadsafe functions.
func (e *Env) Len() int {
	return e.table.Len()
}

// CreateThreadsafeFunction creates a function and returns its handle.
//
// The handle stays valid until the function finalizes; after that every
// operation on it fails with an invalid-argument error.
func (e *Env) CreateThreadsafeFunction(opts CreateOptions) (Handle, error) {
	if e == nil || e.loop == nil {
		return 0, errors.InvalidArgument(errors.PhaseCreate, "env has no loop")
	}

	var handle atomic.Uint32
	userFinalize := opts.Finalize

	q, err := tsfn.New[any](loopOwner{e.loop}, tsfn.Config[any]{
		Name:               opts.Name,
		Context:            opts.Context,
		Call:               opts.Call,
		FinalizeData:       opts.FinalizeData,
		MaxQueueSize:       opts.MaxQueueSize,
		InitialThreadCount: opts.InitialThreadCount,
		Logger:             e.logger,
		Finalize: func(data, context any) {
			h := Handle(handle.Load())
			if h == 0 {
				return
			}
			defer e.table.Remove(h)
			if userFinalize != nil {
				userFinalize(data, context)
			}
		},
	})
	if err != nil {
		return 0, err
	}

	h, err := e.table.Insert(TypeThreadsafeFunction, q)
	if err != nil {
		q.Drop()
		return 0, errors.New(errors.PhaseCreate, errors.KindGenericFailure).
			Name(opts.Name).
			Cause(err).
			Detail("register handle").
			Build()
	}
	handle.Store(uint32(h))
	return h, nil
}

func (e *Env) lookup(phase errors.Phase, h Handle) (*tsfn.Queue[any], error) {
	if e == nil {
		return nil, errors.InvalidArgument(phase, "nil env")
	}
	return resource.Lookup[*tsfn.Queue[any]](e.table, phase, h, TypeThreadsafeFunction)
}

// AcquireThreadsafeFunction adds a producer reference.
func (e *Env) AcquireThreadsafeFunction(h Handle) error {
	q, err := e.lookup(errors.PhaseAcquire, h)
	if err != nil {
		return err
	}
	return q.Acquire()
}

// CallThreadsafeFunction enqueues data for the function's Call callback.
func (e *Env) CallThreadsafeFunction(h Handle, data any, mode tsfn.CallMode) error {
	q, err := e.lookup(errors.PhaseCall, h)
	if err != nil {
		return err
	}
	return q.Call(data, mode)
}

// ReleaseThreadsafeFunction drops a producer reference.
func (e *Env) ReleaseThreadsafeFunction(h Handle, mode tsfn.ReleaseMode) error {
	q, err := e.lookup(errors.PhaseRelease, h)
	if err != nil {
		return err
	}
	return q.Release(mode)
}

// GetThreadsafeFunctionContext returns the function's context value.
func (e *Env) GetThreadsafeFunctionContext(h Handle) (any, error) {
	q, err := e.lookup(errors.PhaseContext, h)
	if err != nil {
		return nil, err
	}
	return q.Context()
}

// RefThreadsafeFunction makes the function keep the loop alive.
func (e *Env) RefThreadsafeFunction(h Handle) error {
	q, err := e.lookup(errors.PhaseRef, h)
	if err != nil {
		return err
	}
	return q.Ref()
}

// UnrefThreadsafeFunction lets the loop exit while the function is open.
func (e *Env) UnrefThreadsafeFunction(h Handle) error {
	q, err := e.lookup(errors.PhaseRef, h)
	if err != nil {
		return err
	}
	return q.Unref()
}

// Close aborts every live function and invalidates all handles. Pending
// items are still delivered, and finalizers still run, the next time the
// loop runs.
func (e *Env) Close() error {
	if ce := e.logger.Check(zap.DebugLevel, "closing env"); ce != nil {
		var live []string
		e.table.Each(func(_ Handle, typeID uint32, v any) bool {
			if q, ok := v.(*tsfn.Queue[any]); ok && typeID == TypeThreadsafeFunction {
				live = append(live, q.Name())
			}
			return true
		})
		ce.Write(zap.Strings("live", live))
	}

	err := e.table.Close()
	e.table.Unsubscribe(e.observer)
	return err
}

// loopOwner adapts a loop to tsfn.Owner.
type loopOwner struct {
	l *loop.Loop
}

func (o loopOwner) NewWaker(onWake func()) (tsfn.Waker, error) {
	a, err := o.l.NewAsync(onWake)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type handleLogger struct {
	logger *zap.Logger
}

func (h handleLogger) OnResourceEvent(ev resource.Event) {
	if ce := h.logger.Check(zap.DebugLevel, "threadsafe function handle "+ev.Type.String()); ce != nil {
		name := ""
		if q, ok := ev.Value.(*tsfn.Queue[any]); ok {
			name = q.Name()
		}
		ce.Write(
			zap.Uint32("handle", uint32(ev.Handle)),
			zap.String("tsfn", name),
		)
	}
}

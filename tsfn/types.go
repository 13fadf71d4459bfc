package tsfn

import "go.uber.org/zap"

const (
	// MaxThreadCount bounds the initial producer count accepted by New.
	MaxThreadCount = 128

	// MaxDispatchPerWake bounds how many items one owner wake-up delivers
	// before yielding back to the owner loop.
	MaxDispatchPerWake = 1000
)

// CallMode selects the backpressure behaviour of Call on a full queue.
type CallMode int

const (
	// ModeNonBlocking makes Call fail with a queue-full error instead of waiting.
	ModeNonBlocking CallMode = iota
	// ModeBlocking makes Call wait until space frees or the queue closes.
	ModeBlocking
)

func (m CallMode) String() string {
	switch m {
	case ModeNonBlocking:
		return "nonblocking"
	case ModeBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// ReleaseMode selects how Release gives up a producer reference.
type ReleaseMode int

const (
	// ReleaseNormal drops one reference; the last one starts shutdown.
	ReleaseNormal ReleaseMode = iota
	// ReleaseAbort drops one reference and starts shutdown immediately,
	// waking every producer blocked in Call.
	ReleaseAbort
)

func (m ReleaseMode) String() string {
	switch m {
	case ReleaseNormal:
		return "release"
	case ReleaseAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// State is the queue lifecycle state. Transitions only move forward.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CallFunc processes one dequeued item on the owner goroutine.
// context is the value given in Config.Context.
type CallFunc[T any] func(context any, item T)

// FinalizeFunc runs once on the owner goroutine after the queue drained.
type FinalizeFunc func(finalizeData, context any)

// Waker is the owner context's wake-up primitive.
//
// Send must be safe from any goroutine and must eventually run the
// registered wake callback on the owner goroutine. Ref and Unref control
// whether the waker alone keeps the owner running. Close unregisters it.
type Waker interface {
	Send()
	Ref()
	Unref()
	Close()
}

// LocalWaker is a Waker that can tell whether the caller runs on the owner
// goroutine. Queues use it to fail blocking calls the owner would otherwise
// make on itself.
type LocalWaker interface {
	Waker
	InLoop() bool
}

// Owner is the single-threaded execution context that drains queues.
type Owner interface {
	// NewWaker registers onWake to run on the owner goroutine whenever the
	// returned waker is sent. The waker starts referenced.
	NewWaker(onWake func()) (Waker, error)
}

// Config describes a queue. The zero value is not valid: Name, Call and
// InitialThreadCount are required.
type Config[T any] struct {
	// Name labels the queue in errors and logs.
	Name string

	// Context is returned verbatim by Queue.Context and passed to callbacks.
	Context any

	// Call is invoked once per item on the owner goroutine.
	Call CallFunc[T]

	// Finalize, if set, runs once after shutdown drained the queue.
	Finalize FinalizeFunc

	// FinalizeData is passed to Finalize.
	FinalizeData any

	// MaxQueueSize bounds pending items. 0 means unbounded.
	MaxQueueSize int

	// InitialThreadCount is the number of producers holding the queue at
	// creation, in [1, MaxThreadCount].
	InitialThreadCount int

	// Logger overrides the package logger for this queue.
	Logger *zap.Logger
}

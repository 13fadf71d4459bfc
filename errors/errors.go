package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which operation produced the error
type Phase string

const (
	PhaseCreate   Phase = "create"   // queue construction
	PhaseAcquire  Phase = "acquire"  // producer acquisition
	PhaseCall     Phase = "call"     // enqueue from a producer
	PhaseRelease  Phase = "release"  // producer release / abort
	PhaseContext  Phase = "context"  // context accessor
	PhaseRef      Phase = "ref"      // keep-alive ref/unref
	PhaseDispatch Phase = "dispatch" // owner-side drain
	PhaseLoop     Phase = "loop"     // owner event loop
	PhaseHandle   Phase = "handle"   // handle table lookups
	PhaseGuest    Phase = "guest"    // guest module marshaling
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindQueueFull       Kind = "queue_full"
	KindClosing         Kind = "closing"
	KindGenericFailure  Kind = "generic_failure"
	KindLoopClosed      Kind = "loop_closed"
	KindLoopRunning     Kind = "loop_running"
	KindTypeMismatch    Kind = "type_mismatch"
	KindUnsupported     Kind = "unsupported"
	KindNotFound        Kind = "not_found"
	KindOverflow        Kind = "overflow"
	KindWouldDeadlock   Kind = "would_deadlock"
)

// Sentinels match any error of the same Kind regardless of Phase.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrQueueFull       = &Error{Kind: KindQueueFull}
	ErrClosing         = &Error{Kind: KindClosing}
	ErrGenericFailure  = &Error{Kind: KindGenericFailure}
	ErrWouldDeadlock   = &Error{Kind: KindWouldDeadlock}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Name   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" on ")
		b.WriteString(e.Name)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// Is is errors.Is from the standard library, re-exported so callers that
// import this package under its own name need only one import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Name sets the label of the queue or handle involved
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the queue status taxonomy

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// QueueFull creates a queue-full error for a bounded queue
func QueueFull(name string, capacity int) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindQueueFull,
		Name:   name,
		Detail: fmt.Sprintf("queue at capacity %d", capacity),
		Value:  capacity,
	}
}

// Closing creates an error for a queue that no longer accepts work
func Closing(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosing,
		Name:   name,
		Detail: "queue is closing",
	}
}

// GenericFailure creates a protocol violation error
func GenericFailure(phase Phase, name, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindGenericFailure,
		Name:   name,
		Detail: detail,
	}
}

// InvalidHandle creates an error for a zero, unknown or stale handle
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: fmt.Sprintf("invalid handle %d", handle),
		Value:  handle,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeMismatch creates a marshaling type mismatch error
func TypeMismatch(phase Phase, name, goType, witType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Name:   name,
		Detail: fmt.Sprintf("Go type %s does not lower to WIT type %s", goType, witType),
	}
}

// Overflow creates an error for a value outside the target type's range
func Overflow(phase Phase, name string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Name:   name,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// WouldDeadlock creates an error for a blocking call made by the goroutine
// that would have to unblock it
func WouldDeadlock(phase Phase, name string, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWouldDeadlock,
		Name:   name,
		Detail: fmt.Sprintf("blocking call on the owner goroutine with queue at capacity %d", capacity),
		Value:  capacity,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

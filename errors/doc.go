// Package errors provides structured error types for the call queue runtime.
//
// Errors are categorized by Phase (which operation failed) and Kind (error category).
// The Kind values mirror the status codes a producer or owner sees:
//
//	KindInvalidArgument - malformed or missing input, never retried
//	KindQueueFull       - a bounded queue rejected a non-blocking call
//	KindClosing         - the queue is shutting down, no retry will succeed
//	KindGenericFailure  - protocol violation such as a double release
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindQueueFull).
//		Name("resize-events").
//		Detail("queue at capacity %d", 16).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Closing(errors.PhaseCall, "resize-events")
//	err := errors.InvalidHandle(errors.PhaseHandle, 7)
//
// The package-level sentinels match any phase:
//
//	if errors.Is(err, errs.ErrQueueFull) { /* retry later */ }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

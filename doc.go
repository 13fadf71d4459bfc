// Package wasmtsfn hands work from many goroutines to one owner goroutine
// through threadsafe functions: bounded FIFO call queues with reference
// counted producers and an explicit drain and finalize lifecycle.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmtsfn/            Root package (documentation only)
//	├── tsfn/            Queue[T]: Acquire, Call, Release, Ref, Unref, drain
//	│   └── internal/ring  Growable FIFO ring buffer backing the queue
//	├── loop/            Owner event loop with coalescing async wake handles
//	├── env/             Handle-based facade binding queues to a loop
//	├── resource/        Generational handle table with drop observers
//	├── engine/          wazero guests that consume queue items on the loop
//	├── errors/          Structured error types with phase and kind
//	└── cmd/tsfnbench/   Throughput benchmark with JSON, plot and TUI output
//
// # Quick Start
//
// Create a threadsafe function on a loop and feed it from goroutines:
//
//	l := loop.New()
//	e := env.New(l)
//	defer e.Close()
//
//	h, err := e.CreateThreadsafeFunction(env.CreateOptions{
//	    Name:               "jobs",
//	    Call:               func(_ any, item any) { handle(item) },
//	    MaxQueueSize:       64,
//	    InitialThreadCount: workers,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < workers; i++ {
//	    go func() {
//	        defer e.ReleaseThreadsafeFunction(h, tsfn.ReleaseNormal)
//	        for job := range jobs {
//	            e.CallThreadsafeFunction(h, job, tsfn.ModeBlocking)
//	        }
//	    }()
//	}
//
//	// Returns once every producer released and the queue finalized.
//	err = l.Run(ctx, loop.RunDefault)
//
// # Backpressure
//
// With MaxQueueSize > 0, ModeBlocking calls wait for space and
// ModeNonBlocking calls fail with errors.ErrQueueFull. A Release with
// ReleaseAbort closes the queue and wakes every waiting producer.
package wasmtsfn

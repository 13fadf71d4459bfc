// Package env exposes threadsafe functions through handles, the way an
// embedding runtime presents them to native add-ons.
//
// An Env pairs a loop.Loop with a handle table. Every function it creates
// is a tsfn.Queue[any] whose waker is an Async handle on that loop:
//
//	l := loop.New()
//	e := env.New(l)
//
//	h, err := e.CreateThreadsafeFunction(env.CreateOptions{
//	    Name:               "progress",
//	    Call:               func(_ any, v any) { report(v) },
//	    InitialThreadCount: 1,
//	})
//
//	go func() {
//	    for p := range work {
//	        _ = e.CallThreadsafeFunction(h, p, tsfn.ModeBlocking)
//	    }
//	    _ = e.ReleaseThreadsafeFunction(h, tsfn.ReleaseNormal)
//	}()
//
//	_ = l.Run(ctx, loop.RunDefault) // returns once the function finalized
//
// Handles are removed from the table after the function's finalizer
// returns. Operations on a removed, zero or foreign handle fail with an
// invalid-argument error.
package env

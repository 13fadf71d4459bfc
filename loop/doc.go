// Package loop provides the owner execution context that drains call queues.
//
// A Loop runs on exactly one goroutine at a time (the one calling Run) and
// executes two kinds of work there:
//
//	Post(task)      one-shot tasks, run in submission order
//	Async handles   wake-up handles sent from any goroutine
//
// # Liveness
//
// An Async handle starts referenced. While any referenced handle is open,
// or tasks are queued, the loop is alive and Run(ctx, RunDefault) keeps
// waiting for work. Unref lets the loop return even though the handle is
// open; Close unregisters it.
//
//	l := loop.New()
//	a, _ := l.NewAsync(func() { fmt.Println("woken") })
//	go func() { a.Send(); a.Close() }()
//	_ = l.Run(ctx, loop.RunDefault) // returns after the handle closes
//
// # Run modes
//
//	RunDefault  until the loop is no longer alive or ctx is done
//	RunOnce     one batch, blocking for it only if nothing is ready
//	RunNoWait   whatever is ready right now, never blocks
//
// Panics raised by callbacks are recovered and logged so one failing
// callback cannot stop the loop.
package loop

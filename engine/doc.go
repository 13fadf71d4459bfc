// Package engine hosts WebAssembly guests that consume threadsafe function
// items on the owner loop.
//
// This package wraps wazero. A guest is a core module; a Sink binds one of
// its exports to a WIT parameter list so Go values can be lowered to core
// values and delivered:
//
//	eng, _ := engine.NewWazeroEngine(ctx)
//	defer eng.Close(ctx)
//
//	guest, _ := eng.LoadGuest(ctx, engine.AccumulatorGuest())
//	sink, _ := guest.Sink("on_item", "s64")
//
//	q, _ := tsfn.New(owner, tsfn.Config[any]{
//	    Name:               "guest",
//	    Call:               sink.CallFunc(ctx),
//	    InitialThreadCount: 1,
//	})
//
// # Lowering
//
// Only flat primitive WIT types are accepted:
//
//	WIT Type              Core   Go values
//	───────────────────────────────────────────────────
//	bool                  i32    bool
//	u8, u16, u32          i32    unsigned or non-negative signed ints
//	s8, s16, s32          i32    any integer
//	u64 / s64             i64    integers
//	f32 / f64             f32/64 floats or integers
//	char                  i32    rune or the first rune of a string
//
// Integers outside the target type's range fail with an overflow error
// instead of truncating. Sink rejects an export whose core
// parameters differ from the lowered WIT list.
//
// # Concurrency
//
// Calls into one Guest are serialized. Deliver may be called from any
// goroutine, but the usual caller is the loop goroutine through CallFunc.
package engine

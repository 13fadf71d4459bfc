package engine

// accumulatorWasm is a hand-assembled core module equivalent to:
//
//	(module
//	  (global $sum (mut i64) (i64.const 0))
//	  (global $count (mut i32) (i32.const 0))
//	  (func (export "on_item") (param i64)
//	    (global.set $sum (i64.add (global.get $sum) (local.get 0)))
//	    (global.set $count (i32.add (global.get $count) (i32.const 1))))
//	  (func (export "sum") (result i64) (global.get $sum))
//	  (func (export "count") (result i32) (global.get $count)))
var accumulatorWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type
	0x01, 0x0d, 0x03,
	0x60, 0x01, 0x7e, 0x00,
	0x60, 0x00, 0x01, 0x7e,
	0x60, 0x00, 0x01, 0x7f,
	// function
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,
	// global
	0x06, 0x0b, 0x02,
	0x7e, 0x01, 0x42, 0x00, 0x0b,
	0x7f, 0x01, 0x41, 0x00, 0x0b,
	// export
	0x07, 0x19, 0x03,
	0x07, 'o', 'n', '_', 'i', 't', 'e', 'm', 0x00, 0x00,
	0x03, 's', 'u', 'm', 0x00, 0x01,
	0x05, 'c', 'o', 'u', 'n', 't', 0x00, 0x02,
	// code
	0x0a, 0x1c, 0x03,
	0x10, 0x00, 0x23, 0x00, 0x20, 0x00, 0x7c, 0x24, 0x00, 0x23, 0x01, 0x41, 0x01, 0x6a, 0x24, 0x01, 0x0b,
	0x04, 0x00, 0x23, 0x00, 0x0b,
	0x04, 0x00, 0x23, 0x01, 0x0b,
}

// Accumulator export names and their WIT parameter list.
const (
	AccumulatorOnItem = "on_item"
	AccumulatorParams = "s64"
	AccumulatorSum    = "sum"
	AccumulatorCount  = "count"
)

// AccumulatorGuest returns a small module that sums the s64 items passed
// to on_item. sum() returns the total and count() the number of calls.
func AccumulatorGuest() []byte {
	out := make([]byte, len(accumulatorWasm))
	copy(out, accumulatorWasm)
	return out
}

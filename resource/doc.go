// Package resource maps 32-bit handles to host values.
//
// Embedders hand out handles instead of Go pointers; the table resolves
// them back and rejects zero, unknown and stale handles.
//
//	table := resource.NewTable()
//
//	h, err := table.Insert(typeID, value)
//	v, ok := table.GetTyped(h, typeID)
//	v, ok = table.Remove(h)
//
// # Handles
//
// Slots are recycled through a free list. Each slot carries an 8-bit
// generation that is bumped on removal and encoded in the handle, so an old
// handle does not resolve to whatever later reuses its slot.
//
// # Typed lookup
//
// Lookup combines the type-ID check with a Go type assertion and returns an
// invalid-argument error on any mismatch:
//
//	q, err := resource.Lookup[*Queue](table, errors.PhaseCall, h, TypeQueue)
//
// # Observers
//
// Observers receive EventCreated and EventDropped after the table lock is
// released, so they may call back into the table.
//
// # Cleanup
//
// Values implementing Dropper have Drop called when they are removed and
// when the table is closed. Close drops every live value and rejects later
// inserts.
package resource

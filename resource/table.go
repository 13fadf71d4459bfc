package resource

import (
	"sync"

	"github.com/wippyai/wasm-tsfn/errors"
)

// ErrTableClosed is returned by Insert after Close.
var ErrTableClosed = errors.New(errors.PhaseHandle, errors.KindGenericFailure).Detail("handle table closed").Build()

type slot struct {
	value  any
	typeID uint32
	gen    uint8
	live   bool
}

// Table maps handles to values. It is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	slots    []slot
	freeList []int
	live     int
	closed   bool

	obsMu     sync.RWMutex
	observers []Observer
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		slots:    make([]slot, 0, 16),
		freeList: make([]int, 0, 8),
	}
}

// Insert stores value under typeID and returns its handle.
func (t *Table) Insert(typeID uint32, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrTableClosed
	}

	var idx int
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else {
		if len(t.slots) >= MaxHandles {
			t.mu.Unlock()
			return 0, errors.New(errors.PhaseHandle, errors.KindGenericFailure).
				Value(len(t.slots)).
				Detail("handle table full").
				Build()
		}
		t.slots = append(t.slots, slot{})
		idx = len(t.slots) - 1
	}

	s := &t.slots[idx]
	s.value = value
	s.typeID = typeID
	s.live = true
	h := makeHandle(idx, s.gen)
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h, nil
}

// lookupLocked returns the live slot for h. Caller holds t.mu.
func (t *Table) lookupLocked(h Handle) *slot {
	if h == 0 {
		return nil
	}
	idx := h.index()
	if idx < 0 || idx >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil
	}
	return s
}

// GetTyped returns the value under h only if it was inserted with typeID.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.lookupLocked(h)
	if s == nil || s.typeID != typeID {
		return nil, false
	}
	return s.value, true
}

// Lookup returns the value under h as a T. It fails with an invalid-argument
// error when h is unknown, was inserted under another type ID, or holds a
// value of another Go type.
func Lookup[T any](t *Table, phase errors.Phase, h Handle, typeID uint32) (T, error) {
	var zero T
	v, ok := t.GetTyped(h, typeID)
	if !ok {
		return zero, errors.InvalidHandle(phase, uint32(h))
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.InvalidHandle(phase, uint32(h))
	}
	return out, nil
}

// Remove drops h from the table and returns its value. The value's Drop
// method, if any, runs before observers are notified.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	s := t.lookupLocked(h)
	if s == nil {
		t.mu.Unlock()
		return nil, false
	}
	value, typeID := t.releaseLocked(h.index())
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, TypeID: typeID, Value: value})
	return value, true
}

// releaseLocked frees slot idx and bumps its generation. Caller holds t.mu.
func (t *Table) releaseLocked(idx int) (any, uint32) {
	s := &t.slots[idx]
	value, typeID := s.value, s.typeID
	s.value = nil
	s.typeID = 0
	s.live = false
	s.gen++
	t.freeList = append(t.freeList, idx)
	t.live--
	return value, typeID
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every live handle until fn returns false. The table is
// read-locked during iteration, so fn must not modify it.
func (t *Table) Each(fn func(Handle, uint32, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		if !fn(makeHandle(i, s.gen), s.typeID, s.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close drops every live value and rejects further inserts. Handles stay
// invalid afterwards. Close is idempotent.
func (t *Table) Close() error {
	type dropped struct {
		h      Handle
		typeID uint32
		value  any
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var out []dropped
	for i := range t.slots {
		if !t.slots[i].live {
			continue
		}
		h := makeHandle(i, t.slots[i].gen)
		v, typeID := t.releaseLocked(i)
		out = append(out, dropped{h: h, typeID: typeID, value: v})
	}
	t.mu.Unlock()

	for _, d := range out {
		if dr, ok := d.value.(Dropper); ok {
			dr.Drop()
		}
		t.notify(Event{Type: EventDropped, Handle: d.h, TypeID: d.typeID, Value: d.value})
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	observers := append([]Observer(nil), t.observers...)
	t.obsMu.RUnlock()

	for _, o := range observers {
		o.OnResourceEvent(e)
	}
}

package resource

// Handle is an opaque reference to a value in a Table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits hold the slot index plus one, the high 8 bits the slot
// generation, so a handle to a removed value stays invalid after its slot
// is reused.
type Handle uint32

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1

	// MaxHandles is the number of slots a table can hold at once.
	MaxHandles = indexMask
)

func makeHandle(index int, gen uint8) Handle {
	return Handle(uint32(gen)<<indexBits | uint32(index+1))
}

func (h Handle) index() int {
	return int(uint32(h)&indexMask) - 1
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> indexBits)
}

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event describes one handle lifecycle change.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives lifecycle events. Observers run on the goroutine that
// changed the table, with no table lock held.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is implemented by values that need cleanup when the table
// discards them.
type Dropper interface {
	Drop()
}

package module

import (
	"context"
)

// Handle is an opaque resource owned by exactly one tag. A registered handle
// is never nil.
type Handle any

// Cleaner releases the resource behind a handle when its tag is removed.
type Cleaner interface {
	Cleanup(ctx context.Context, h Handle) error
}

// Kind is one kind of host module.
type Kind interface {
	Cleaner

	// Name identifies the module; names are unique within a registry.
	Name() string

	// Register binds the module's commands and prepares its state.
	Register(m *Module) error
}

// Shutdowner is implemented by kinds holding state beyond their tags.
// Shutdown runs after every remaining tag of the module has been cleaned up.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// EventType identifies a tag lifecycle event.
type EventType uint8

const (
	EventAdded EventType = iota
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a tag lifecycle notification.
type Event struct {
	Handle Handle
	// Err is the cleanup failure of a removal, if any.
	Err  error
	Name string
	Type EventType
}

// Observer receives tag lifecycle events.
type Observer interface {
	OnTagEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnTagEvent implements Observer.
func (f ObserverFunc) OnTagEvent(e Event) { f(e) }

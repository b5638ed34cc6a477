package pubsub

import "context"

type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event is a change notification carrying the payload that changed.
type Event[T any] struct {
	Type    EventType
	Payload T
}

// Subscriber is implemented by services that broadcast change events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher is implemented by services that accept events for broadcast.
type Publisher[T any] interface {
	Publish(t EventType, payload T)
}

// Package events is the in-process publish/subscribe layer that decouples the
// routing engine from notification delivery.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything published on the bus.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the id and timestamp every event embeds.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events by EventName.
type Bus interface {
	// Publish fans out asynchronously. Handler failures are logged only.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers in order and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

// idOf returns the event id when the event embeds BaseEvent.
func idOf(event Event) string {
	if e, ok := event.(interface{ EventID() uuid.UUID }); ok {
		return e.EventID().String()
	}
	return ""
}

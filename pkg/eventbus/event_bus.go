// Package eventbus publishes and consumes workflow lifecycle events.
package eventbus

import (
	"context"

	"github.com/dukex/taskflow/pkg/events"
)

// Event is a lifecycle event. The space id is empty for events that are not tied
// to a space, such as task releases.
type Event interface {
	GetType() events.EventType
	GetSpaceID() string
}

// EventPublisher sends events after the change they describe has committed. key
// orders events per workflow on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the concrete event type, e.g. *events.WorkflowCreated.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

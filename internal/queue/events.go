package queue

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event kinds published by the engine.
const (
	EventDecisionRecorded = "approval:decision"
	EventRollbackFinished = "rollback:finished"
	EventVersionActivated = "version:activated"
)

// Event is the record handed to a notification collaborator after a
// decision, activation or rollback commits. The engine only publishes;
// delivery belongs to the consumer.
type Event struct {
	Kind       string    `json:"kind"`
	ContentID  string    `json:"content_id"`
	VersionID  string    `json:"version_id"`
	RecordID   string    `json:"record_id,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	// Publish hands an event to the notification collaborator. Publishing
	// must never fail an engine operation that has already committed.
	Publish(ctx context.Context, event Event) error
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, event Event) error {
	return nil
}

// ChannelNotifier buffers events on a channel for an in-process consumer.
// When the buffer is full the event is dropped with a warning rather than
// blocking the write path.
type ChannelNotifier struct {
	events chan Event
}

func NewChannelNotifier(size int) *ChannelNotifier {
	if size <= 0 {
		size = 64
	}
	return &ChannelNotifier{events: make(chan Event, size)}
}

func (n *ChannelNotifier) Publish(ctx context.Context, event Event) error {
	select {
	case n.events <- event:
	default:
		logrus.Warnf("notifier buffer full, dropping event %s for version %s", event.Kind, event.VersionID)
	}
	return nil
}

// Events exposes the consumer side of the buffer.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

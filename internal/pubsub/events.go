// Package pubsub provides a generic publish/subscribe event broker.
package pubsub

import (
	"context"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// SourceChangedEvent signals that a registry input file was modified.
	SourceChangedEvent EventType = "source_changed"
	// BuildStartedEvent signals that a registry build has begun.
	BuildStartedEvent EventType = "build_started"
	// BuildFinishedEvent signals that a registry build completed successfully.
	BuildFinishedEvent EventType = "build_finished"
	// BuildFailedEvent signals that a registry build aborted with an error.
	BuildFailedEvent EventType = "build_failed"
	// LogEntryEvent carries a formatted log line.
	LogEntryEvent EventType = "log_entry"
)

// Event is a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

package kafka

import (
	"context"
	"time"

	"smartparking/pkg/logger"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventBookingUpdated   = "booking.updated"
	EventSlotsReleased    = "slots.released"
	EventSlotsReset       = "slots.reset"
	EventUserRegistered   = "user.registered"
	EventUserDeleted      = "user.deleted"

	SchemaVersion = "1"
)

// Publisher emits domain events. Publishing is best effort: a failure is
// logged by the implementation and never fails the caller's operation.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload any)
}

type correlationKey struct{}

// WithCorrelationID attaches an id that is copied onto every event published
// with the returned context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

type EventPublisher struct {
	producer *Producer
	source   string
	timeout  time.Duration
	log      *logger.Logger
}

func NewEventPublisher(producer *Producer, source string, timeout time.Duration, log *logger.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		source:   source,
		timeout:  timeout,
		log:      log,
	}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, eventType, key string, payload any) {
	msg, err := NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(correlationID(ctx)).
		Build()
	if err != nil {
		p.log.Error("Failed to build event", "event_type", eventType, "key", key, "error", err)
		return
	}

	// The request context may already be close to its deadline; events get
	// their own budget but keep the request's values.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.producer.Publish(pubCtx, msg); err != nil {
		p.log.Warn("Failed to publish event",
			"event_type", eventType,
			"key", key,
			"error_type", ClassifyError(err).String(),
			"error", err,
		)
	}
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, string, string, any) {}

// RecordingPublisher keeps events in memory.
type RecordingPublisher struct {
	Events []RecordedEvent
}

type RecordedEvent struct {
	Type    string
	Key     string
	Payload any
}

func (r *RecordingPublisher) PublishEvent(_ context.Context, eventType, key string, payload any) {
	r.Events = append(r.Events, RecordedEvent{Type: eventType, Key: key, Payload: payload})
}

func (r *RecordingPublisher) Types() []string {
	types := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}

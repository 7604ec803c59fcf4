package dispatch

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// EventType is the closed set of provider event types the pipeline knows.
// Anything else maps to EventTypeUnhandled, which is a first-class case
// rather than a silent fallthrough.
type EventType string

const (
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"
	EventTypePaymentRefunded  EventType = "payment.refunded"
	EventTypeAccountUpdated   EventType = "account.updated"
	EventTypeUnhandled        EventType = "unhandled"
)

// ParseEventType maps a provider event type string onto the closed enum.
func ParseEventType(raw string) EventType {
	switch EventType(raw) {
	case EventTypePaymentSucceeded, EventTypePaymentFailed, EventTypePaymentRefunded, EventTypeAccountUpdated:
		return EventType(raw)
	default:
		return EventTypeUnhandled
	}
}

// Handler executes the business logic for one event type.
type Handler interface {
	Handle(ctx context.Context, ev *webhook.ParsedEvent) Result
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev *webhook.ParsedEvent) Result

func (f HandlerFunc) Handle(ctx context.Context, ev *webhook.ParsedEvent) Result {
	return f(ctx, ev)
}

// Registry maps event types to handlers. It is populated once at startup;
// lookups at request time are read-only.
type Registry struct {
	handlers map[EventType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[EventType]Handler{}}
}

// Register binds a handler to an event type. Registering the unhandled
// pseudo-type or double-registering is a programming error.
func (r *Registry) Register(eventType EventType, handler Handler) {
	if eventType == EventTypeUnhandled {
		panic("dispatch: cannot register a handler for the unhandled type")
	}
	if _, exists := r.handlers[eventType]; exists {
		panic("dispatch: handler already registered for " + string(eventType))
	}
	r.handlers[eventType] = handler
}

// Dispatch runs the handler for the event's type. Unknown types complete
// successfully without invoking any business logic.
func (r *Registry) Dispatch(ctx context.Context, ev *webhook.ParsedEvent) Result {
	eventType := ParseEventType(ev.Type)
	if eventType == EventTypeUnhandled {
		log.Infof("[Worker] No handler for event type %s (event %s), acking without side effects", ev.Type, ev.ID)
		return UnhandledType(ev.Type)
	}
	handler, ok := r.handlers[eventType]
	if !ok {
		log.Infof("[Worker] Event type %s known but unbound (event %s), acking without side effects", ev.Type, ev.ID)
		return UnhandledType(ev.Type)
	}
	return handler.Handle(ctx, ev)
}

// Package feed carries domain change events from the CRUD layer to live subscribers.
package feed

import (
	"context"
	"sync"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
)

// Kind identifies the type of change being announced.
type Kind string

// Event kinds.
const (
	KindServiceUpdate  Kind = "service-update"
	KindIncidentUpdate Kind = "incident-update"
	KindStatusUpdate   Kind = "status-update"
)

// Kinds lists every valid event kind.
func Kinds() []Kind {
	return []Kind{KindServiceUpdate, KindIncidentUpdate, KindStatusUpdate}
}

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindServiceUpdate, KindIncidentUpdate, KindStatusUpdate:
		return true
	}
	return false
}

// Event is a committed change. Scope is the entity's own scope, not the caller's.
type Event struct {
	Kind    Kind
	Payload any
	Scope   domain.Scope
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Handler consumes change events.
type Handler func(ctx context.Context, event Event)

// Bus is a synchronous in-process publisher. Handlers run on the publishing
// goroutine in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every handler. A panicking handler is logged
// and does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, event)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("feed handler panicked", "kind", event.Kind, "panic", r)
		}
	}()
	h(ctx, event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}

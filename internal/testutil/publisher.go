package testutil

import (
	"context"
	"sync"

	"github.com/bissquit/statusrelay/internal/feed"
)

// RecordingPublisher is a feed.Publisher that keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

// Publish records event.
func (p *RecordingPublisher) Publish(_ context.Context, event feed.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of the recorded events in publish order.
func (p *RecordingPublisher) Events() []feed.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feed.Event(nil), p.events...)
}

// Reset drops all recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

package feed

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_IsValid(t *testing.T) {
	for _, k := range Kinds() {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, Kind("user-update").IsValid())
	assert.False(t, Kind("").IsValid())
}

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var calls []string

	bus.Subscribe(func(_ context.Context, e Event) { calls = append(calls, "first:"+string(e.Kind)) })
	bus.Subscribe(func(_ context.Context, e Event) { calls = append(calls, "second:"+string(e.Kind)) })

	bus.Publish(context.Background(), Event{Kind: KindServiceUpdate})

	assert.Equal(t, []string{"first:service-update", "second:service-update"}, calls)
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	var got []Event

	bus.Subscribe(func(context.Context, Event) { panic("boom") })
	bus.Subscribe(func(_ context.Context, e Event) { got = append(got, e) })

	event := Event{
		Kind:    KindIncidentUpdate,
		Payload: "payload",
		Scope:   domain.Scope{OrganizationID: "acme"},
	}
	require.NotPanics(t, func() { bus.Publish(context.Background(), event) })

	require.Len(t, got, 1)
	assert.Equal(t, event, got[0])
}

func TestBus_PanicLoggedWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "req-1")
	ctx := ctxlog.WithLogger(context.Background(), logger)

	bus := NewBus()
	bus.Subscribe(func(context.Context, Event) { panic("boom") })
	bus.Publish(ctx, Event{Kind: KindServiceUpdate})

	out := buf.String()
	assert.Contains(t, out, "feed handler panicked")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "kind=service-update")
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: KindStatusUpdate})
	})
}

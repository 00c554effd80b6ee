package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/statusrelay/internal/domain"
)

func newTestHub(t *testing.T, connIDs ...string) (*Hub, map[string]*mockSender) {
	t.Helper()

	hub := NewHub(NewRegistry())
	hub.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	senders := make(map[string]*mockSender, len(connIDs))
	for _, id := range connIDs {
		s := &mockSender{}
		senders[id] = s
		hub.Connect(context.Background(), id, s)
	}
	return hub, senders
}

func lastFrame(t *testing.T, s *mockSender) inboundFrame {
	t.Helper()
	frames := s.frames(t)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

func decodeData[T any](t *testing.T, f inboundFrame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func TestHub_Authenticate(t *testing.T) {
	hub, senders := newTestHub(t, "c1")

	hub.Handle(context.Background(), "c1",
		[]byte(`{"event":"authenticate","data":{"userId":"u1","organizationId":"acme","tenantId":"t1","userRole":"admin"}}`))

	f := lastFrame(t, senders["c1"])
	assert.Equal(t, EventAuthenticated, f.Event)
	payload := decodeData[AuthenticatedPayload](t, f)
	assert.True(t, payload.Success)
	assert.Equal(t, "c1", payload.ClientID)

	info, ok := hub.Registry().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "admin", info.UserRole)
	assert.Equal(t, 1, hub.Registry().Count(domain.Scope{OrganizationID: "acme"}))
	assert.Equal(t, 1, hub.Registry().Count(domain.Scope{TenantID: "t1"}))
}

func TestHub_AuthenticateFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing data", raw: `{"event":"authenticate"}`},
		{name: "null data", raw: `{"event":"authenticate","data":null}`},
		{name: "wrong shape", raw: `{"event":"authenticate","data":"u1"}`},
		{name: "object field", raw: `{"event":"authenticate","data":{"userId":{"id":42}}}`},
		{name: "array field", raw: `{"event":"authenticate","data":{"organizationId":["acme"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, senders := newTestHub(t, "c1")

			hub.Handle(context.Background(), "c1", []byte(tt.raw))

			f := lastFrame(t, senders["c1"])
			assert.Equal(t, EventAuthenticationError, f.Event)
			payload := decodeData[AuthenticationErrorPayload](t, f)
			assert.Equal(t, "Authentication failed", payload.Error)

			// Still registered, not authenticated.
			assert.Equal(t, 1, hub.Registry().Count(domain.Scope{}))
			_, ok := hub.Registry().Get("c1")
			assert.False(t, ok)
		})
	}
}

func TestHub_AuthenticateAcceptsNumericClaims(t *testing.T) {
	hub, senders := newTestHub(t, "c1")

	hub.Handle(context.Background(), "c1",
		[]byte(`{"event":"authenticate","data":{"userId":42,"organizationId":7,"tenantId":null,"userRole":true}}`))

	assert.Equal(t, EventAuthenticated, lastFrame(t, senders["c1"]).Event)

	info, ok := hub.Registry().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "42", info.UserID)
	assert.Equal(t, "7", info.OrganizationID)
	assert.Empty(t, info.TenantID)
	assert.Equal(t, "true", info.UserRole)
	assert.Equal(t, []string{"c1"}, hub.Registry().MembersOf(OrganizationRoom("7")))
}

func TestHub_JoinOrganizationWithNumericID(t *testing.T) {
	hub, senders := newTestHub(t, "c1")

	hub.Handle(context.Background(), "c1", []byte(`{"event":"join-organization","data":{"organizationId":42}}`))

	f := lastFrame(t, senders["c1"])
	assert.Equal(t, EventJoinedOrganization, f.Event)
	assert.Equal(t, "42", decodeData[OrganizationPayload](t, f).OrganizationID)
	assert.Equal(t, []string{"c1"}, hub.Registry().MembersOf(OrganizationRoom("42")))
}

func TestHub_JoinAndLeaveOrganization(t *testing.T) {
	hub, senders := newTestHub(t, "c1")
	ctx := context.Background()

	hub.Handle(ctx, "c1", []byte(`{"event":"join-organization","data":{"organizationId":"acme"}}`))

	f := lastFrame(t, senders["c1"])
	assert.Equal(t, EventJoinedOrganization, f.Event)
	assert.Equal(t, "acme", decodeData[OrganizationPayload](t, f).OrganizationID)
	assert.Equal(t, []string{"c1"}, hub.Registry().MembersOf(OrganizationRoom("acme")))

	hub.Handle(ctx, "c1", []byte(`{"event":"leave-organization","data":{"organizationId":"acme"}}`))

	f = lastFrame(t, senders["c1"])
	assert.Equal(t, EventLeftOrganization, f.Event)
	assert.Equal(t, "acme", decodeData[OrganizationPayload](t, f).OrganizationID)
	assert.Empty(t, hub.Registry().MembersOf(OrganizationRoom("acme")))
}

func TestHub_OrganizationIDRequired(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "join without data", raw: `{"event":"join-organization"}`},
		{name: "join with empty id", raw: `{"event":"join-organization","data":{"organizationId":""}}`},
		{name: "leave without id", raw: `{"event":"leave-organization","data":{}}`},
		{name: "join with object id", raw: `{"event":"join-organization","data":{"organizationId":{"id":1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, senders := newTestHub(t, "c1")

			hub.Handle(context.Background(), "c1", []byte(tt.raw))

			f := lastFrame(t, senders["c1"])
			assert.Equal(t, EventError, f.Event)
			assert.Equal(t, "Organization ID is required", decodeData[ErrorPayload](t, f).Message)
			assert.Empty(t, hub.Registry().RoomsOf("c1"))
		})
	}
}

func TestHub_ErrorsAreScopedToOffendingConnection(t *testing.T) {
	hub, senders := newTestHub(t, "bad", "good")

	hub.Handle(context.Background(), "bad", []byte(`{"event":"join-organization","data":{}}`))

	assert.Equal(t, 1, senders["bad"].count())
	assert.Equal(t, 0, senders["good"].count())
}

func TestHub_Ping(t *testing.T) {
	hub, senders := newTestHub(t, "c1")

	hub.Handle(context.Background(), "c1", []byte(`{"event":"ping"}`))

	f := lastFrame(t, senders["c1"])
	assert.Equal(t, EventPong, f.Event)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), decodeData[PongPayload](t, f).Timestamp)
}

func TestHub_MalformedAndUnknownMessages(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{name: "not json", raw: `hello`, message: "Invalid message format"},
		{name: "no event", raw: `{"data":{}}`, message: "Invalid message format"},
		{name: "unknown event", raw: `{"event":"subscribe"}`, message: "Unknown event: subscribe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, senders := newTestHub(t, "c1")

			hub.Handle(context.Background(), "c1", []byte(tt.raw))

			f := lastFrame(t, senders["c1"])
			assert.Equal(t, EventError, f.Event)
			assert.Equal(t, tt.message, decodeData[ErrorPayload](t, f).Message)
		})
	}
}

func TestHub_RejectRateLimited(t *testing.T) {
	hub, senders := newTestHub(t, "c1")

	hub.RejectRateLimited(context.Background(), "c1")

	f := lastFrame(t, senders["c1"])
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, "Rate limit exceeded", decodeData[ErrorPayload](t, f).Message)
}

func TestHub_DisconnectReleasesRooms(t *testing.T) {
	hub, _ := newTestHub(t, "c1")
	ctx := context.Background()

	hub.Handle(ctx, "c1", []byte(`{"event":"authenticate","data":{"organizationId":"acme","tenantId":"t1"}}`))
	hub.Disconnect(ctx, "c1", "test")
	hub.Disconnect(ctx, "c1", "test")

	assert.Equal(t, 0, hub.Registry().Count(domain.Scope{}))
	assert.Empty(t, hub.Registry().MembersOf(OrganizationRoom("acme")))
	assert.Empty(t, hub.Registry().MembersOf(TenantRoom("t1")))
}

func TestHub_HandleAfterDisconnectIsSilent(t *testing.T) {
	hub, senders := newTestHub(t, "c1")
	hub.Disconnect(context.Background(), "c1", "test")

	assert.NotPanics(t, func() {
		hub.Handle(context.Background(), "c1", []byte(`{"event":"ping"}`))
		hub.Handle(context.Background(), "c1", []byte(`{"event":"join-organization","data":{"organizationId":"acme"}}`))
	})
	assert.Equal(t, 0, senders["c1"].count())
	assert.Empty(t, hub.Registry().MembersOf(OrganizationRoom("acme")))
}

package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
)

// Messages sent back to a connection in error frames.
const (
	msgInvalidMessage         = "Invalid message format"
	msgOrganizationIDRequired = "Organization ID is required"
	msgAuthenticationFailed   = "Authentication failed"
	msgJoinFailed             = "Failed to join organization"
	msgLeaveFailed            = "Failed to leave organization"
	msgRateLimited            = "Rate limit exceeded"
)

var errEmptyPayload = errors.New("empty payload")

// Hub runs the connection-level protocol on top of a Registry. The transport
// calls Connect once, Handle for every inbound message in arrival order and
// Disconnect once the connection is gone.
type Hub struct {
	registry *Registry
	validate *validator.Validate
	now      func() time.Time
}

// NewHub creates a hub over registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry returns the registry the hub operates on.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers a new transport connection.
func (h *Hub) Connect(ctx context.Context, connID string, sender Sender) {
	h.registry.Connect(connID, sender)
	ctxlog.FromContext(ctx).Info("client connected", "socket_id", connID)
}

// Disconnect drops the connection and all of its room memberships.
func (h *Hub) Disconnect(ctx context.Context, connID, reason string) {
	if h.registry.Disconnect(connID) {
		ctxlog.FromContext(ctx).Info("client disconnected", "socket_id", connID, "reason", reason)
	}
}

// Handle processes one inbound message. Faults never escape: they are
// reported to the offending connection only.
func (h *Hub) Handle(ctx context.Context, connID string, raw []byte) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		recordInbound("invalid", "error")
		h.reply(ctx, connID, EventError, ErrorPayload{Message: msgInvalidMessage})
		return
	}

	switch in.Event {
	case EventAuthenticate:
		h.authenticate(ctx, connID, in.Data)
	case EventJoinOrganization:
		h.joinOrganization(ctx, connID, in.Data)
	case EventLeaveOrganization:
		h.leaveOrganization(ctx, connID, in.Data)
	case EventPing:
		recordInbound(EventPing, "success")
		h.reply(ctx, connID, EventPong, PongPayload{Timestamp: h.now()})
	default:
		recordInbound("unknown", "error")
		h.reply(ctx, connID, EventError, ErrorPayload{Message: fmt.Sprintf("Unknown event: %s", in.Event)})
	}
}

// RejectRateLimited tells connID that its message was dropped.
func (h *Hub) RejectRateLimited(ctx context.Context, connID string) {
	recordInbound("rate_limited", "error")
	h.reply(ctx, connID, EventError, ErrorPayload{Message: msgRateLimited})
}

func (h *Hub) authenticate(ctx context.Context, connID string, data json.RawMessage) {
	logger := ctxlog.FromContext(ctx)

	fail := func(err error) {
		recordInbound(EventAuthenticate, "error")
		logger.Warn("authentication failed", "socket_id", connID, "error", err)
		h.reply(ctx, connID, EventAuthenticationError, AuthenticationErrorPayload{
			Error:     msgAuthenticationFailed,
			Timestamp: h.now(),
		})
	}

	defer func() {
		if p := recover(); p != nil {
			fail(fmt.Errorf("panic: %v", p))
		}
	}()

	var claimed identityClaim
	if err := decodePayload(data, &claimed); err != nil {
		fail(err)
		return
	}
	id := claimed.identity()

	if _, err := h.registry.Authenticate(connID, id); err != nil {
		fail(err)
		return
	}

	recordInbound(EventAuthenticate, "success")
	logger.Info("client authenticated",
		"socket_id", connID,
		"user_id", id.UserID,
		"organization_id", id.OrganizationID,
		"tenant_id", id.TenantID,
	)
	h.reply(ctx, connID, EventAuthenticated, AuthenticatedPayload{
		Success:   true,
		ClientID:  connID,
		Timestamp: h.now(),
	})
}

func (h *Hub) joinOrganization(ctx context.Context, connID string, data json.RawMessage) {
	h.organizationEvent(ctx, connID, data, EventJoinOrganization, EventJoinedOrganization, msgJoinFailed,
		h.registry.JoinOrganization)
}

func (h *Hub) leaveOrganization(ctx context.Context, connID string, data json.RawMessage) {
	h.organizationEvent(ctx, connID, data, EventLeaveOrganization, EventLeftOrganization, msgLeaveFailed,
		h.registry.LeaveOrganization)
}

func (h *Hub) organizationEvent(
	ctx context.Context,
	connID string,
	data json.RawMessage,
	event, ack, failMsg string,
	apply func(connID, organizationID string) error,
) {
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			recordInbound(event, "error")
			logger.Error("organization event panicked", "event", event, "socket_id", connID, "panic", p)
			h.reply(ctx, connID, EventError, ErrorPayload{Message: failMsg})
		}
	}()

	var req organizationRequest
	if err := decodePayload(data, &req); err != nil || h.validate.Struct(req) != nil {
		recordInbound(event, "invalid")
		h.reply(ctx, connID, EventError, ErrorPayload{Message: msgOrganizationIDRequired})
		return
	}

	organizationID := string(req.OrganizationID)
	if err := apply(connID, organizationID); err != nil {
		recordInbound(event, "error")
		logger.Warn("organization event failed", "event", event, "socket_id", connID, "error", err)
		h.reply(ctx, connID, EventError, ErrorPayload{Message: failMsg})
		return
	}

	recordInbound(event, "success")
	logger.Info("organization room changed", "event", event, "socket_id", connID, "organization_id", organizationID)
	h.reply(ctx, connID, ack, OrganizationPayload{
		OrganizationID: organizationID,
		Timestamp:      h.now(),
	})
}

// reply sends a frame to a single connection. Unknown connections are ignored.
func (h *Hub) reply(ctx context.Context, connID, event string, data any) {
	sender, ok := h.registry.Sender(connID)
	if !ok {
		return
	}

	msg, err := encodeFrame(event, data)
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to encode reply", "event", event, "error", err)
		return
	}

	if err := sender.Send(msg); err != nil {
		ctxlog.FromContext(ctx).Warn("reply delivery failed", "event", event, "socket_id", connID, "error", err)
	}
}

func decodePayload(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errEmptyPayload
	}
	return json.Unmarshal(trimmed, v)
}

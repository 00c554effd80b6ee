package realtime

import (
	"context"
	"time"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
)

// Broadcast target kinds, used in logs and metrics.
const (
	TargetOrganization = "organization"
	TargetTenant       = "tenant"
	TargetAll          = "all"
)

// Delivery summarizes one broadcast call.
type Delivery struct {
	Target     string    `json:"target"`
	Recipients int       `json:"recipients"`
	Failed     int       `json:"failed"`
	Timestamp  time.Time `json:"timestamp"`
}

// Router delivers change events to the connections selected by their scope.
type Router struct {
	registry *Registry
	now      func() time.Time
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Broadcast sends payload wrapped in an Envelope to the organization room if
// scope names an organization, else to the tenant room if it names a tenant,
// else to every live connection. All recipients see the same timestamp.
// Per-connection failures are logged and counted, never returned.
func (r *Router) Broadcast(ctx context.Context, kind feed.Kind, payload any, scope domain.Scope) Delivery {
	logger := ctxlog.FromContext(ctx)

	d := Delivery{
		Target:    targetOf(scope),
		Timestamp: r.now(),
	}

	msg, err := encodeFrame(string(kind), Envelope{
		Type:      kind,
		Data:      payload,
		Timestamp: d.Timestamp,
	})
	if err != nil {
		logger.Error("failed to encode broadcast", "type", kind, "error", err)
		return d
	}

	r.registry.forEachTarget(scope, func(connID string, s Sender) {
		if err := s.Send(msg); err != nil {
			d.Failed++
			logger.Warn("broadcast delivery failed",
				"type", kind,
				"socket_id", connID,
				"error", err,
			)
			return
		}
		d.Recipients++
	})

	recordBroadcast(string(kind), d.Target, d.Recipients, d.Failed)

	logger.Debug("broadcast sent",
		"type", kind,
		"target", d.Target,
		"organization_id", scope.OrganizationID,
		"tenant_id", scope.TenantID,
		"recipients", d.Recipients,
		"failed", d.Failed,
	)

	return d
}

// Handle broadcasts a change event. It is meant to be subscribed to a feed.Bus.
func (r *Router) Handle(ctx context.Context, event feed.Event) {
	r.Broadcast(ctx, event.Kind, event.Payload, event.Scope)
}

func targetOf(scope domain.Scope) string {
	switch {
	case scope.OrganizationID != "":
		return TargetOrganization
	case scope.TenantID != "":
		return TargetTenant
	default:
		return TargetAll
	}
}

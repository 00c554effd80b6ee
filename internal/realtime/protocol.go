package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bissquit/statusrelay/internal/feed"
)

// Inbound connection events.
const (
	EventAuthenticate      = "authenticate"
	EventJoinOrganization  = "join-organization"
	EventLeaveOrganization = "leave-organization"
	EventPing              = "ping"
)

// Outbound connection events.
const (
	EventAuthenticated       = "authenticated"
	EventAuthenticationError = "authentication-error"
	EventJoinedOrganization  = "joined-organization"
	EventLeftOrganization    = "left-organization"
	EventPong                = "pong"
	EventError               = "error"
)

// SupportedEvents lists every event name a client may send or receive.
func SupportedEvents() []string {
	events := []string{
		EventAuthenticate,
		EventJoinOrganization,
		EventLeaveOrganization,
		EventPing,
	}
	for _, k := range feed.Kinds() {
		events = append(events, string(k))
	}
	return events
}

// Frame is the JSON unit exchanged over a connection in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope wraps every broadcast payload.
type Envelope struct {
	Type      feed.Kind `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthenticatedPayload acknowledges a successful authenticate.
type AuthenticatedPayload struct {
	Success   bool      `json:"success"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthenticationErrorPayload reports a failed authenticate.
type AuthenticationErrorPayload struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// OrganizationPayload acknowledges joining or leaving an organization room.
type OrganizationPayload struct {
	OrganizationID string    `json:"organizationId"`
	Timestamp      time.Time `json:"timestamp"`
}

// PongPayload answers a ping.
type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a connection-scoped error.
type ErrorPayload struct {
	Message string `json:"message"`
}

type organizationRequest struct {
	OrganizationID claim `json:"organizationId" validate:"required"`
}

// identityClaim is the inbound form of Identity.
type identityClaim struct {
	UserID         claim `json:"userId"`
	OrganizationID claim `json:"organizationId"`
	TenantID       claim `json:"tenantId"`
	UserRole       claim `json:"userRole"`
}

func (c identityClaim) identity() Identity {
	return Identity{
		UserID:         string(c.UserID),
		OrganizationID: string(c.OrganizationID),
		TenantID:       string(c.TenantID),
		UserRole:       string(c.UserRole),
	}
}

// claim is an identifier as a client sent it. Numbers and booleans are kept
// in their literal form; objects and arrays are rejected.
type claim string

func (c *claim) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errEmptyPayload
	}

	switch data[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = claim(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = claim(strconv.FormatBool(b))
		return nil
	case '{', '[':
		return fmt.Errorf("identifier must be a string or number, got %s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*c = claim(n.String())
		return nil
	}
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/pkg/httputil"
)

// Handler exposes websocket introspection and the administrative broadcast.
type Handler struct {
	registry *Registry
	router   *Router
	endpoint string
	now      func() time.Time
}

// NewHandler creates a new realtime handler. endpoint is the public path of
// the websocket upgrade route.
func NewHandler(registry *Registry, router *Router, endpoint string) *Handler {
	return &Handler{
		registry: registry,
		router:   router,
		endpoint: endpoint,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers the /websocket routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/websocket", func(r chi.Router) {
		r.Get("/info", h.Info)
		r.Post("/broadcast", h.Broadcast)
	})
}

// InfoResponse describes the live connections.
type InfoResponse struct {
	ConnectedClients      int                     `json:"connectedClients"`
	TotalConnectedClients int                     `json:"totalConnectedClients"`
	ClientsInfo           []domain.ConnectionInfo `json:"clientsInfo"`
	WebsocketEndpoint     string                  `json:"websocketEndpoint"`
	SupportedEvents       []string                `json:"supportedEvents"`
	Timestamp             time.Time               `json:"timestamp"`
}

// Info handles GET /websocket/info.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	scope := domain.Scope{
		OrganizationID: r.URL.Query().Get("organizationId"),
		TenantID:       r.URL.Query().Get("tenantId"),
	}

	clients := h.registry.List()
	filtered := make([]domain.ConnectionInfo, 0, len(clients))
	for _, c := range clients {
		switch {
		case scope.OrganizationID != "":
			if c.OrganizationID != scope.OrganizationID {
				continue
			}
		case scope.TenantID != "":
			if c.TenantID != scope.TenantID {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	httputil.Success(w, http.StatusOK, InfoResponse{
		ConnectedClients:      h.registry.Count(scope),
		TotalConnectedClients: h.registry.Count(domain.Scope{}),
		ClientsInfo:           filtered,
		WebsocketEndpoint:     h.endpoint,
		SupportedEvents:       SupportedEvents(),
		Timestamp:             h.now(),
	})
}

// BroadcastRequest is the body of an administrative broadcast.
type BroadcastRequest struct {
	Type           feed.Kind       `json:"type"`
	Data           json.RawMessage `json:"data"`
	OrganizationID string          `json:"organizationId"`
	TenantID       string          `json:"tenantId"`
}

// BroadcastResponse acknowledges an administrative broadcast.
type BroadcastResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Type           feed.Kind `json:"type"`
	OrganizationID string    `json:"organizationId,omitempty"`
	TenantID       string    `json:"tenantId,omitempty"`
	Recipients     int       `json:"recipients"`
	Timestamp      time.Time `json:"timestamp"`
}

// Broadcast handles POST /websocket/broadcast.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" || isEmptyJSON(req.Data) {
		httputil.Error(w, http.StatusBadRequest, "Type and data are required")
		return
	}
	if !req.Type.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "Invalid broadcast type")
		return
	}

	scope := domain.Scope{OrganizationID: req.OrganizationID, TenantID: req.TenantID}
	d := h.router.Broadcast(r.Context(), req.Type, req.Data, scope)

	httputil.Success(w, http.StatusOK, BroadcastResponse{
		Success:        true,
		Message:        "Broadcast sent successfully",
		Type:           req.Type,
		OrganizationID: req.OrganizationID,
		TenantID:       req.TenantID,
		Recipients:     d.Recipients,
		Timestamp:      d.Timestamp,
	})
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

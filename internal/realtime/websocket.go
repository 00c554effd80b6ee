package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bissquit/statusrelay/internal/pkg/ctxlog"
)

var (
	// ErrSendBufferFull is returned by a connection whose outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnectionClosed is returned by a connection that is shutting down.
	ErrConnectionClosed = errors.New("connection closed")
)

// TransportConfig tunes websocket connections.
type TransportConfig struct {
	AllowedOrigins []string
	SendBuffer     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	RateLimit      float64
	RateBurst      int
}

// DefaultTransportConfig returns production defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		SendBuffer:     64,
		MaxMessageSize: 4096,
		WriteTimeout:   5 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   50 * time.Second,
		RateLimit:      10,
		RateBurst:      20,
	}
}

// Transport upgrades HTTP requests to websocket connections and feeds them
// into a Hub.
type Transport struct {
	hub      *Hub
	cfg      TransportConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewTransport creates a websocket transport.
func NewTransport(hub *Hub, cfg TransportConfig, logger *slog.Logger) *Transport {
	t := &Transport{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*websocket.Conn),
	}
	t.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.AllowedOrigins)
		},
	}
	return t
}

// ServeHTTP handles the upgrade and blocks until the connection is gone.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		t.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	ctx := ctxlog.WithLogger(context.WithoutCancel(r.Context()), t.logger.With("socket_id", id))

	c := &client{
		conn: conn,
		send: make(chan []byte, t.cfg.SendBuffer),
	}

	t.track(id, conn)
	t.hub.Connect(ctx, id, c)

	go t.writePump(c)
	t.readPump(ctx, id, c)
}

// Shutdown closes every open connection with a going-away close frame.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.cfg.WriteTimeout))
		_ = conn.Close()
	}
}

func (t *Transport) readPump(ctx context.Context, id string, c *client) {
	reason := "client closed"
	defer func() {
		// Registry removal happens before the queue is closed so that no
		// broadcast can reach the connection afterwards.
		t.hub.Disconnect(ctx, id, reason)
		c.close()
		t.untrack(id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(t.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(t.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.cfg.PongTimeout))
	})

	limiter := rate.NewLimiter(rate.Limit(t.cfg.RateLimit), t.cfg.RateBurst)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = err.Error()
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(t.cfg.PongTimeout))

		if !limiter.Allow() {
			t.hub.RejectRateLimited(ctx, id)
			continue
		}
		t.hub.Handle(ctx, id, msg)
	}
}

func (t *Transport) writePump(c *client) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *Transport) track(id string, conn *websocket.Conn) {
	t.mu.Lock()
	t.conns[id] = conn
	t.mu.Unlock()
}

func (t *Transport) untrack(id string) {
	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
}

// client is the Sender of one websocket connection.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func (c *client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// originAllowed accepts requests without an Origin header, origins on the
// allow-list (or "*"), and same-host origins.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(r.Host))
	return host == strings.ToLower(strings.TrimSpace(u.Host))
}

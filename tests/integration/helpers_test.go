//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/testutil"
)

// newScope returns an organization id no other test uses, so list and
// status assertions are not disturbed by data from parallel tests.
func newScope(t *testing.T) string {
	t.Helper()
	return "org-" + uuid.NewString()[:8]
}

func createService(t *testing.T, client *testutil.Client, payload map[string]any) domain.Service {
	t.Helper()

	if _, ok := payload["description"]; !ok {
		payload["description"] = "integration test service"
	}
	resp, err := client.POST("/api/v1/services", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return testutil.DecodeData[domain.Service](t, resp)
}

func createIncident(t *testing.T, client *testutil.Client, payload map[string]any) domain.Incident {
	t.Helper()

	if _, ok := payload["description"]; !ok {
		payload["description"] = "integration test incident"
	}
	resp, err := client.POST("/api/v1/incidents", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return testutil.DecodeData[domain.Incident](t, resp)
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func receive(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func receiveBroadcast[T any](t *testing.T, conn *websocket.Conn, event string) T {
	t.Helper()

	f := receive(t, conn)
	require.Equal(t, event, f.Event)

	var env envelope
	require.NoError(t, json.Unmarshal(f.Data, &env))
	require.Equal(t, event, env.Type)

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

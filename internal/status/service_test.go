package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/statusrelay/internal/catalog"
	catalogmemory "github.com/bissquit/statusrelay/internal/catalog/memory"
	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/incidents"
	incidentsmemory "github.com/bissquit/statusrelay/internal/incidents/memory"
	"github.com/bissquit/statusrelay/internal/status"
	"github.com/bissquit/statusrelay/internal/testutil"
)

type fixture struct {
	catalog   *catalog.Service
	incidents *incidents.Service
	status    *status.Service
}

func newFixture(t *testing.T, pub feed.Publisher) fixture {
	t.Helper()
	services := catalogmemory.NewRepository()
	list := incidentsmemory.NewRepository()
	return fixture{
		catalog:   catalog.NewService(services, pub),
		incidents: incidents.NewService(list, pub),
		status:    status.NewService(services, list),
	}
}

func TestService_SnapshotReflectsCurrentState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	snap, err := f.status.Snapshot(ctx, domain.Scope{})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallOperational, snap.OverallStatus)
	assert.Equal(t, 100.0, snap.AverageUptime)

	api, err := f.catalog.CreateService(ctx, catalog.CreateServiceInput{Name: "API", Description: "x", OrganizationID: "acme"})
	require.NoError(t, err)
	_, err = f.catalog.CreateService(ctx, catalog.CreateServiceInput{Name: "CDN", Description: "x", OrganizationID: "globex"})
	require.NoError(t, err)

	_, err = f.catalog.UpdateService(ctx, api.ID, catalog.UpdateServiceInput{Status: ptr(domain.ServiceStatusPartial)})
	require.NoError(t, err)

	snap, err = f.status.Snapshot(ctx, domain.Scope{OrganizationID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallMajor, snap.OverallStatus)
	assert.Equal(t, 1, snap.TotalServices)
	assert.Equal(t, "acme", snap.OrganizationID)

	_, err = f.incidents.CreateIncident(ctx, incidents.CreateIncidentInput{Title: "x", Description: "x", OrganizationID: "globex"})
	require.NoError(t, err)

	snap, err = f.status.Snapshot(ctx, domain.Scope{OrganizationID: "globex"})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallDegraded, snap.OverallStatus)
	assert.Equal(t, 1, snap.ActiveIncidents)
}

func TestHandler_GetStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.catalog.CreateService(ctx, catalog.CreateServiceInput{Name: "API", Description: "x", TenantID: "t1", Status: domain.ServiceStatusDegraded})
	require.NoError(t, err)

	r := chi.NewRouter()
	status.NewHandler(f.status).RegisterRoutes(r)

	tests := []struct {
		query   string
		overall domain.OverallStatus
		total   int
	}{
		{query: "", overall: domain.OverallDegraded, total: 1},
		{query: "?tenantId=t1", overall: domain.OverallDegraded, total: 1},
		{query: "?tenantId=t2", overall: domain.OverallOperational, total: 0},
		{query: "?organizationId=acme&tenantId=t1", overall: domain.OverallOperational, total: 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Data domain.StatusSnapshot `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.overall, body.Data.OverallStatus)
			assert.Equal(t, tt.total, body.Data.TotalServices)
		})
	}
}

type failingLister struct{}

func (failingLister) ListServices(context.Context, catalog.ServiceFilter) ([]domain.Service, error) {
	return nil, errors.New("connection refused")
}

func TestHandler_GetStatusStorageError(t *testing.T) {
	r := chi.NewRouter()
	status.NewHandler(status.NewService(failingLister{}, incidentsmemory.NewRepository())).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublisher_RepublishesScopedSnapshot(t *testing.T) {
	bus := feed.NewBus()
	f := newFixture(t, bus)

	out := &testutil.RecordingPublisher{}
	pub := status.NewPublisher(f.status, out)
	bus.Subscribe(pub.Handle)

	ctx := context.Background()
	_, err := f.catalog.CreateService(ctx, catalog.CreateServiceInput{Name: "API", Description: "x", OrganizationID: "acme", Status: domain.ServiceStatusMajor})
	require.NoError(t, err)
	_, err = f.incidents.CreateIncident(ctx, incidents.CreateIncidentInput{Title: "x", Description: "x", TenantID: "t1"})
	require.NoError(t, err)

	events := out.Events()
	require.Len(t, events, 2)

	assert.Equal(t, feed.KindStatusUpdate, events[0].Kind)
	assert.Equal(t, domain.Scope{OrganizationID: "acme"}, events[0].Scope)
	first, ok := events[0].Payload.(domain.StatusSnapshot)
	require.True(t, ok)
	assert.Equal(t, domain.OverallMajor, first.OverallStatus)

	second, ok := events[1].Payload.(domain.StatusSnapshot)
	require.True(t, ok)
	assert.Equal(t, domain.Scope{TenantID: "t1"}, events[1].Scope)
	assert.Equal(t, domain.OverallDegraded, second.OverallStatus)
	assert.Equal(t, 1, second.ActiveIncidents)
}

func TestPublisher_IgnoresStatusEvents(t *testing.T) {
	f := newFixture(t, nil)
	out := &testutil.RecordingPublisher{}

	status.NewPublisher(f.status, out).Handle(context.Background(), feed.Event{Kind: feed.KindStatusUpdate})
	assert.Empty(t, out.Events())
}

func ptr[T any](v T) *T { return &v }

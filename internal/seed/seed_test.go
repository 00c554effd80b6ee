package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/statusrelay/internal/catalog"
	catalogmemory "github.com/bissquit/statusrelay/internal/catalog/memory"
	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/incidents"
	incidentsmemory "github.com/bissquit/statusrelay/internal/incidents/memory"
	"github.com/bissquit/statusrelay/internal/seed"
	"github.com/bissquit/statusrelay/internal/status"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestDefault(t *testing.T) {
	f, err := seed.Default()
	require.NoError(t, err)

	assert.Len(t, f.Services, 6)
	require.Len(t, f.Incidents, 1)
	assert.Len(t, f.Incidents[0].Updates, 2)
	assert.Equal(t, 2*time.Hour, f.Incidents[0].Age.Duration())
}

func TestApply_Default(t *testing.T) {
	f, err := seed.Default()
	require.NoError(t, err)

	services := catalogmemory.NewRepository()
	list := incidentsmemory.NewRepository()
	ctx := context.Background()

	res, err := seed.Apply(ctx, f, services, list, now)
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Services: 6, Incidents: 1}, res)

	all, err := services.ListServices(ctx, catalog.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "API Gateway", all[0].Name)
	assert.Equal(t, 99.98, all[0].Uptime)
	assert.Equal(t, domain.ServiceStatusDegraded, all[3].Status)

	incs, err := list.ListIncidents(ctx, incidents.IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, incs, 1)

	inc := incs[0]
	assert.Equal(t, domain.IncidentStatusIdentified, inc.Status)
	assert.Equal(t, domain.IncidentImpactMinor, inc.Impact)
	assert.Equal(t, []string{"File Storage"}, inc.AffectedServices)
	assert.Equal(t, now.Add(-2*time.Hour), inc.CreatedAt)
	assert.Equal(t, now.Add(-30*time.Minute), inc.UpdatedAt)
	require.Len(t, inc.Updates, 2)
	assert.Equal(t, domain.IncidentStatusInvestigating, inc.Updates[0].Status)

	snap := status.Compute(all, incs, domain.Scope{}, now)
	assert.Equal(t, domain.OverallDegraded, snap.OverallStatus)
	assert.Equal(t, 5, snap.OperationalServices)
	assert.Equal(t, 1, snap.ActiveIncidents)
}

func TestApply_SkipsWhenServicesExist(t *testing.T) {
	f, err := seed.Default()
	require.NoError(t, err)

	services := catalogmemory.NewRepository()
	list := incidentsmemory.NewRepository()
	ctx := context.Background()

	_, err = seed.Apply(ctx, f, services, list, now)
	require.NoError(t, err)

	res, err := seed.Apply(ctx, f, services, list, now)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	all, err := services.ListServices(ctx, catalog.ServiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestParse_Defaults(t *testing.T) {
	f, err := seed.Parse([]byte(`
services:
  - name: API
    organization_id: acme
incidents:
  - title: Outage
`))
	require.NoError(t, err)

	services := catalogmemory.NewRepository()
	list := incidentsmemory.NewRepository()
	_, err = seed.Apply(context.Background(), f, services, list, now)
	require.NoError(t, err)

	all, err := services.ListServices(context.Background(), catalog.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.ServiceStatusOperational, all[0].Status)
	assert.Equal(t, 100.0, all[0].Uptime)
	assert.Equal(t, "acme", all[0].OrganizationID)

	incs, err := list.ListIncidents(context.Background(), incidents.IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, domain.IncidentStatusInvestigating, incs[0].Status)
	assert.Empty(t, incs[0].Updates)
	assert.Equal(t, now, incs[0].CreatedAt)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "unknown key", data: "services:\n  - name: a\n    colour: red\n", wantErr: "failed to parse YAML"},
		{name: "bad duration", data: "incidents:\n  - title: a\n    age: soon\n", wantErr: "invalid duration"},
		{name: "missing name", data: "services:\n  - description: a\n", wantErr: "name is required"},
		{name: "bad service status", data: "services:\n  - name: a\n    status: down\n", wantErr: "invalid status"},
		{name: "uptime out of range", data: "services:\n  - name: a\n    uptime: 120\n", wantErr: "uptime must be between 0 and 100"},
		{name: "missing title", data: "incidents:\n  - impact: minor\n", wantErr: "title is required"},
		{name: "bad update status", data: "incidents:\n  - title: a\n    updates:\n      - status: fixed\n        message: x\n", wantErr: "invalid status"},
		{name: "missing message", data: "incidents:\n  - title: a\n    updates:\n      - status: identified\n", wantErr: "message is required"},
		{
			name:    "updates out of order",
			data:    "incidents:\n  - title: a\n    updates:\n      - status: investigating\n        message: x\n        age: 1h\n      - status: identified\n        message: y\n        age: 2h\n",
			wantErr: "oldest first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: CDN\n"), 0o600))

	f, err := seed.Load(path)
	require.NoError(t, err)
	require.Len(t, f.Services, 1)
	assert.Equal(t, "CDN", f.Services[0].Name)

	_, err = seed.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/statusrelay/internal/catalog"
	"github.com/bissquit/statusrelay/internal/catalog/memory"
	"github.com/bissquit/statusrelay/internal/domain"
	"github.com/bissquit/statusrelay/internal/feed"
	"github.com/bissquit/statusrelay/internal/testutil"
)

func newTestService(t *testing.T) (*catalog.Service, *testutil.RecordingPublisher) {
	t.Helper()
	pub := &testutil.RecordingPublisher{}
	return catalog.NewService(memory.NewRepository(), pub), pub
}

func ptr[T any](v T) *T { return &v }

func TestService_CreateDefaults(t *testing.T) {
	svc, pub := newTestService(t)

	s, err := svc.CreateService(context.Background(), catalog.CreateServiceInput{
		Name:           "API",
		Description:    "Public API",
		OrganizationID: "acme",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.ServiceStatusOperational, s.Status)
	assert.Equal(t, 100.0, s.Uptime)
	assert.False(t, s.LastUpdated.IsZero())

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, feed.KindServiceUpdate, events[0].Kind)
	assert.Equal(t, domain.Scope{OrganizationID: "acme"}, events[0].Scope)
	assert.Equal(t, *s, events[0].Payload)
}

func TestService_CreateInvalidStatus(t *testing.T) {
	svc, pub := newTestService(t)

	_, err := svc.CreateService(context.Background(), catalog.CreateServiceInput{
		Name:   "API",
		Status: "broken",
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidStatus)
	assert.Empty(t, pub.Events())
}

func TestService_UpdateIsPartial(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateService(ctx, catalog.CreateServiceInput{
		Name:        "API",
		Description: "Public API",
		TenantID:    "t1",
	})
	require.NoError(t, err)
	created := s.LastUpdated
	pub.Reset()

	time.Sleep(time.Millisecond)
	updated, err := svc.UpdateService(ctx, s.ID, catalog.UpdateServiceInput{
		Status: ptr(domain.ServiceStatusDegraded),
		Uptime: ptr(97.5),
		Name:   ptr(""),
	})
	require.NoError(t, err)

	assert.Equal(t, "API", updated.Name)
	assert.Equal(t, "Public API", updated.Description)
	assert.Equal(t, domain.ServiceStatusDegraded, updated.Status)
	assert.Equal(t, 97.5, updated.Uptime)
	assert.Equal(t, "t1", updated.TenantID)
	assert.True(t, updated.LastUpdated.After(created))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.Scope{TenantID: "t1"}, events[0].Scope)

	stored, err := svc.GetService(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestService_UpdateUsesPostMutationScope(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateService(ctx, catalog.CreateServiceInput{Name: "API", Description: "x"})
	require.NoError(t, err)
	pub.Reset()

	_, err = svc.UpdateService(ctx, s.ID, catalog.UpdateServiceInput{OrganizationID: ptr("globex")})
	require.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.Scope{OrganizationID: "globex"}, events[0].Scope)
}

func TestService_UpdateValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   catalog.UpdateServiceInput
		wantErr error
	}{
		{name: "bad status", input: catalog.UpdateServiceInput{Status: ptr(domain.ServiceStatus("down"))}, wantErr: catalog.ErrInvalidStatus},
		{name: "uptime too high", input: catalog.UpdateServiceInput{Uptime: ptr(100.5)}, wantErr: catalog.ErrInvalidUptime},
		{name: "uptime negative", input: catalog.UpdateServiceInput{Uptime: ptr(-1.0)}, wantErr: catalog.ErrInvalidUptime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub := newTestService(t)
			s, err := svc.CreateService(context.Background(), catalog.CreateServiceInput{Name: "API", Description: "x"})
			require.NoError(t, err)
			pub.Reset()

			_, err = svc.UpdateService(context.Background(), s.ID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, pub.Events())
		})
	}
}

func TestService_UpdateNotFound(t *testing.T) {
	svc, pub := newTestService(t)

	_, err := svc.UpdateService(context.Background(), "missing", catalog.UpdateServiceInput{})
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)
	assert.Empty(t, pub.Events())
}

func TestService_DeleteBroadcastsLastKnownState(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateService(ctx, catalog.CreateServiceInput{
		Name:           "API",
		Description:    "x",
		OrganizationID: "acme",
		TenantID:       "t1",
	})
	require.NoError(t, err)
	pub.Reset()

	require.NoError(t, svc.DeleteService(ctx, s.ID))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.Scope{OrganizationID: "acme", TenantID: "t1"}, events[0].Scope)
	assert.Equal(t, domain.DeletedService{Service: *s, Deleted: true}, events[0].Payload)

	_, err = svc.GetService(ctx, s.ID)
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)

	err = svc.DeleteService(ctx, s.ID)
	assert.True(t, errors.Is(err, catalog.ErrServiceNotFound))
	assert.Len(t, pub.Events(), 1)
}

func TestService_ListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []catalog.CreateServiceInput{
		{Name: "a", Description: "x", OrganizationID: "acme"},
		{Name: "b", Description: "x", OrganizationID: "acme", Status: domain.ServiceStatusMajor},
		{Name: "c", Description: "x", TenantID: "t1"},
		{Name: "d", Description: "x"},
	} {
		_, err := svc.CreateService(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.ListServices(ctx, catalog.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "d", all[3].Name)

	acme, err := svc.ListServices(ctx, catalog.ServiceFilter{Scope: domain.Scope{OrganizationID: "acme", TenantID: "t1"}})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	tenant, err := svc.ListServices(ctx, catalog.ServiceFilter{Scope: domain.Scope{TenantID: "t1"}})
	require.NoError(t, err)
	require.Len(t, tenant, 1)
	assert.Equal(t, "c", tenant[0].Name)

	major, err := svc.ListServices(ctx, catalog.ServiceFilter{Status: ptr(domain.ServiceStatusMajor)})
	require.NoError(t, err)
	require.Len(t, major, 1)
	assert.Equal(t, "b", major[0].Name)
}

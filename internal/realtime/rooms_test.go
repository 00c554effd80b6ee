package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomKeys_NoCrossKindCollision(t *testing.T) {
	assert.NotEqual(t, OrganizationRoom("acme"), TenantRoom("acme"))
	assert.Equal(t, RoomKey("org:acme"), OrganizationRoom("acme"))
	assert.Equal(t, RoomKey("tenant:acme"), TenantRoom("acme"))

	assert.True(t, OrganizationRoom("acme").IsOrganization())
	assert.False(t, OrganizationRoom("acme").IsTenant())
	assert.True(t, TenantRoom("acme").IsTenant())
	assert.False(t, TenantRoom("acme").IsOrganization())
}

func TestRooms_JoinIsIdempotent(t *testing.T) {
	r := NewRooms()

	r.Join("c1", OrganizationRoom("acme"))
	r.Join("c1", OrganizationRoom("acme"))

	assert.Equal(t, 1, r.Size(OrganizationRoom("acme")))
	assert.Equal(t, []string{"c1"}, r.MembersOf(OrganizationRoom("acme")))
	assert.Equal(t, []RoomKey{OrganizationRoom("acme")}, r.RoomsOf("c1"))
}

func TestRooms_JoinThenLeave(t *testing.T) {
	r := NewRooms()

	r.Join("c1", OrganizationRoom("acme"))
	r.Leave("c1", OrganizationRoom("acme"))

	assert.Empty(t, r.MembersOf(OrganizationRoom("acme")))
	assert.Empty(t, r.RoomsOf("c1"))
	assert.Equal(t, 0, r.Size(OrganizationRoom("acme")))
}

func TestRooms_LeaveNonMemberIsNoop(t *testing.T) {
	r := NewRooms()
	r.Join("c1", OrganizationRoom("acme"))

	assert.NotPanics(t, func() {
		r.Leave("c2", OrganizationRoom("acme"))
		r.Leave("c1", TenantRoom("acme"))
		r.Leave("ghost", OrganizationRoom("nowhere"))
	})

	assert.Equal(t, []string{"c1"}, r.MembersOf(OrganizationRoom("acme")))
}

func TestRooms_LeaveAll(t *testing.T) {
	r := NewRooms()
	r.Join("c1", OrganizationRoom("acme"))
	r.Join("c1", TenantRoom("t1"))
	r.Join("c2", TenantRoom("t1"))

	r.LeaveAll("c1")

	assert.Empty(t, r.RoomsOf("c1"))
	assert.Empty(t, r.MembersOf(OrganizationRoom("acme")))
	assert.Equal(t, []string{"c2"}, r.MembersOf(TenantRoom("t1")))
}

func TestRooms_LeaveMatching(t *testing.T) {
	r := NewRooms()
	r.Join("c1", OrganizationRoom("acme"))
	r.Join("c1", OrganizationRoom("globex"))
	r.Join("c1", TenantRoom("t1"))

	r.LeaveMatching("c1", RoomKey.IsOrganization)

	assert.Equal(t, []RoomKey{TenantRoom("t1")}, r.RoomsOf("c1"))
}

func TestRooms_MembersOfReturnsCopy(t *testing.T) {
	r := NewRooms()
	r.Join("c1", OrganizationRoom("acme"))

	members := r.MembersOf(OrganizationRoom("acme"))
	members[0] = "mutated"

	assert.Equal(t, []string{"c1"}, r.MembersOf(OrganizationRoom("acme")))
}

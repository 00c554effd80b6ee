package realtime

import (
	"slices"
	"strings"
)

// RoomKey is a namespaced broadcast group name.
type RoomKey string

// Room key prefixes.
const (
	orgRoomPrefix    = "org:"
	tenantRoomPrefix = "tenant:"
)

// OrganizationRoom returns the room key for an organization.
func OrganizationRoom(id string) RoomKey {
	return RoomKey(orgRoomPrefix + id)
}

// TenantRoom returns the room key for a tenant.
func TenantRoom(id string) RoomKey {
	return RoomKey(tenantRoomPrefix + id)
}

// IsOrganization reports whether the key names an organization room.
func (k RoomKey) IsOrganization() bool {
	return strings.HasPrefix(string(k), orgRoomPrefix)
}

// IsTenant reports whether the key names a tenant room.
func (k RoomKey) IsTenant() bool {
	return strings.HasPrefix(string(k), tenantRoomPrefix)
}

// Rooms is the many-to-many relation between connections and rooms, indexed
// both ways. It is not safe for concurrent use; Registry guards it.
type Rooms struct {
	members map[RoomKey]map[string]struct{}
	byConn  map[string]map[RoomKey]struct{}
}

// NewRooms creates an empty membership relation.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[RoomKey]map[string]struct{}),
		byConn:  make(map[string]map[RoomKey]struct{}),
	}
}

// Join adds connID to room. Joining twice is the same as joining once.
func (r *Rooms) Join(connID string, room RoomKey) {
	m, ok := r.members[room]
	if !ok {
		m = make(map[string]struct{})
		r.members[room] = m
	}
	m[connID] = struct{}{}

	c, ok := r.byConn[connID]
	if !ok {
		c = make(map[RoomKey]struct{})
		r.byConn[connID] = c
	}
	c[room] = struct{}{}
}

// Leave removes connID from room. Leaving a room the connection is not in is a no-op.
func (r *Rooms) Leave(connID string, room RoomKey) {
	if m, ok := r.members[room]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.members, room)
		}
	}
	if c, ok := r.byConn[connID]; ok {
		delete(c, room)
		if len(c) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// LeaveAll releases every membership held by connID.
func (r *Rooms) LeaveAll(connID string) {
	for room := range r.byConn[connID] {
		r.Leave(connID, room)
	}
}

// LeaveMatching releases every room of connID for which match returns true.
func (r *Rooms) LeaveMatching(connID string, match func(RoomKey) bool) {
	for room := range r.byConn[connID] {
		if match(room) {
			r.Leave(connID, room)
		}
	}
}

// MembersOf returns a copy of the connection ids in room.
func (r *Rooms) MembersOf(room RoomKey) []string {
	m := r.members[room]
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Size returns the number of members in room.
func (r *Rooms) Size(room RoomKey) int {
	return len(r.members[room])
}

// RoomsOf returns a copy of the rooms connID belongs to.
func (r *Rooms) RoomsOf(connID string) []RoomKey {
	c := r.byConn[connID]
	out := make([]RoomKey, 0, len(c))
	for room := range c {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

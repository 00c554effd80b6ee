// Package realtime fans out status changes to live viewer connections grouped
// into organization and tenant rooms.
package realtime

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/statusrelay/internal/domain"
)

// ErrUnknownConnection is returned when an operation targets a connection that
// is not (or no longer) registered.
var ErrUnknownConnection = errors.New("unknown connection")

// Sender hands an encoded frame to a connection's transport. Implementations
// must not block; a slow or closed transport reports an error instead.
type Sender interface {
	Send(msg []byte) error
}

// Identity is the identity a connection claims when it authenticates.
// It is taken at face value.
type Identity struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	TenantID       string `json:"tenantId"`
	UserRole       string `json:"userRole"`
}

type connection struct {
	sender Sender
	info   *domain.ConnectionInfo
}

// Registry tracks live connections, their claimed identity and their room
// memberships. One lock guards both so that broadcast resolution always sees
// a consistent membership snapshot.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	rooms *Rooms
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		rooms: NewRooms(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Connect registers a live transport connection. It is not authenticated yet.
func (r *Registry) Connect(connID string, sender Sender) {
	r.mu.Lock()
	r.conns[connID] = &connection{sender: sender}
	n := len(r.conns)
	r.mu.Unlock()

	connectionsActive.Set(float64(n))
}

// Authenticate creates or overwrites the identity record of connID and joins
// the rooms for the claimed organization and tenant. A newly claimed
// organization or tenant replaces any room of the same kind held before.
func (r *Registry) Authenticate(connID string, id Identity) (domain.ConnectionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return domain.ConnectionInfo{}, ErrUnknownConnection
	}

	now := r.now()
	connectedAt := now
	if c.info != nil {
		connectedAt = c.info.ConnectedAt
	}
	c.info = &domain.ConnectionInfo{
		SocketID:       connID,
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		TenantID:       id.TenantID,
		UserRole:       id.UserRole,
		ConnectedAt:    connectedAt,
		LastActivity:   now,
	}

	if id.OrganizationID != "" {
		r.switchRoom(connID, OrganizationRoom(id.OrganizationID), RoomKey.IsOrganization)
	}
	if id.TenantID != "" {
		r.switchRoom(connID, TenantRoom(id.TenantID), RoomKey.IsTenant)
	}

	return *c.info, nil
}

// JoinOrganization moves connID into the organization room, leaving any other
// organization room it was in.
func (r *Registry) JoinOrganization(connID, organizationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}

	r.switchRoom(connID, OrganizationRoom(organizationID), RoomKey.IsOrganization)
	if c.info != nil {
		c.info.OrganizationID = organizationID
		c.info.LastActivity = r.now()
	}
	return nil
}

// LeaveOrganization removes connID from the organization room. The claimed
// identity is left untouched.
func (r *Registry) LeaveOrganization(connID, organizationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return ErrUnknownConnection
	}
	r.rooms.Leave(connID, OrganizationRoom(organizationID))
	return nil
}

// Join adds connID to an arbitrary room.
func (r *Registry) Join(connID string, room RoomKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return ErrUnknownConnection
	}
	r.rooms.Join(connID, room)
	return nil
}

// Leave removes connID from room. Unknown connections and non-members are ignored.
func (r *Registry) Leave(connID string, room RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms.Leave(connID, room)
}

// Disconnect removes connID together with all of its room memberships.
// It returns false if the connection was not registered.
func (r *Registry) Disconnect(connID string) bool {
	r.mu.Lock()
	_, ok := r.conns[connID]
	delete(r.conns, connID)
	r.rooms.LeaveAll(connID)
	n := len(r.conns)
	r.mu.Unlock()

	connectionsActive.Set(float64(n))
	return ok
}

// Get returns the identity record of an authenticated connection.
func (r *Registry) Get(connID string) (domain.ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok || c.info == nil {
		return domain.ConnectionInfo{}, false
	}
	return *c.info, true
}

// List returns the identity records of all authenticated connections ordered
// by first authentication time.
func (r *Registry) List() []domain.ConnectionInfo {
	r.mu.RLock()
	out := make([]domain.ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		if c.info != nil {
			out = append(out, *c.info)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].SocketID < out[j].SocketID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Count returns the number of live connections for scope. Without a scope it
// counts every transport connection, authenticated or not. With a scope it
// counts room members, which may differ from connections merely claiming it.
func (r *Registry) Count(scope domain.Scope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case scope.OrganizationID != "":
		return r.rooms.Size(OrganizationRoom(scope.OrganizationID))
	case scope.TenantID != "":
		return r.rooms.Size(TenantRoom(scope.TenantID))
	default:
		return len(r.conns)
	}
}

// MembersOf returns the connection ids currently in room.
func (r *Registry) MembersOf(room RoomKey) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms.MembersOf(room)
}

// RoomsOf returns the rooms connID currently belongs to.
func (r *Registry) RoomsOf(connID string) []RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms.RoomsOf(connID)
}

// Sender returns the transport of a live connection.
func (r *Registry) Sender(connID string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return c.sender, true
}

// forEachTarget calls fn for every connection selected by scope while holding
// the read lock. fn must not block or call back into the registry.
func (r *Registry) forEachTarget(scope domain.Scope, fn func(connID string, s Sender)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var room RoomKey
	switch {
	case scope.OrganizationID != "":
		room = OrganizationRoom(scope.OrganizationID)
	case scope.TenantID != "":
		room = TenantRoom(scope.TenantID)
	default:
		for id, c := range r.conns {
			fn(id, c.sender)
		}
		return
	}

	for _, id := range r.rooms.MembersOf(room) {
		if c, ok := r.conns[id]; ok {
			fn(id, c.sender)
		}
	}
}

// switchRoom joins room after leaving every other room of the same kind.
func (r *Registry) switchRoom(connID string, room RoomKey, sameKind func(RoomKey) bool) {
	r.rooms.LeaveMatching(connID, func(k RoomKey) bool {
		return k != room && sameKind(k)
	})
	r.rooms.Join(connID, room)
}

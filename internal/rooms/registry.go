// Package rooms tracks which live members are joined to which named rooms.
//
// A Registry is the single source of truth for "who is listening" on a room.
// It keeps a forward index (room -> members) used for fan-out and a reverse
// index (member -> rooms) used to detach a member from everything it joined
// when its connection goes away.
package rooms

import (
	"sync"

	"github.com/samber/lo"
)

// Member is anything that can be joined to a room. IDs must be unique among
// live members; two members reporting the same ID are treated as one.
type Member interface {
	ID() string
}

// Stats is a point-in-time view of the registry size.
type Stats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	Memberships int `json:"memberships"`
}

// Registry maps room identifiers to the set of members currently joined to
// them. All methods are safe for concurrent use. Rooms whose member set
// becomes empty are removed.
type Registry[M Member] struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]M
	memberships map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry[M Member]() *Registry[M] {
	return &Registry[M]{
		rooms:       make(map[string]map[string]M),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds m to the room, creating the room if needed. It reports whether m
// was newly added; joining a room twice has no additional effect.
func (r *Registry[M]) Join(roomID string, m M) bool {
	id := m.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]M)
		r.rooms[roomID] = members
	}
	if _, exists := members[id]; exists {
		return false
	}
	members[id] = m

	joined, ok := r.memberships[id]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[id] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// Leave removes m from the room and reports whether it was a member.
// Leaving a room that does not exist is a no-op.
func (r *Registry[M]) Leave(roomID string, m M) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(roomID, m.ID())
}

// LeaveAll removes m from every room it belongs to and returns the rooms it
// left. Calling it again for the same member returns nil.
func (r *Registry[M]) LeaveAll(m M) []string {
	id := m.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.memberships[id]
	if !ok {
		return nil
	}
	left := lo.Keys(joined)
	for _, roomID := range left {
		r.leaveLocked(roomID, id)
	}
	return left
}

func (r *Registry[M]) leaveLocked(roomID, id string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}

	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	if joined, ok := r.memberships[id]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.memberships, id)
		}
	}
	return true
}

// Members returns a snapshot of the room's members. The slice is owned by
// the caller and is empty, never nil, for unknown rooms.
func (r *Registry[M]) Members(roomID string) []M {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return []M{}
	}
	return lo.Values(members)
}

// Contains reports whether m is currently joined to the room.
func (r *Registry[M]) Contains(roomID string, m M) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][m.ID()]
	return ok
}

// RoomsOf returns the rooms m is currently joined to.
func (r *Registry[M]) RoomsOf(m M) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined, ok := r.memberships[m.ID()]
	if !ok {
		return []string{}
	}
	return lo.Keys(joined)
}

// Len returns the number of non-empty rooms.
func (r *Registry[M]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// Stats returns the current room, member and membership counts.
func (r *Registry[M]) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, members := range r.rooms {
		total += len(members)
	}
	return Stats{
		Rooms:       len(r.rooms),
		Members:     len(r.memberships),
		Memberships: total,
	}
}

// Reset drops every room. It is used when the owning server shuts down.
func (r *Registry[M]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]map[string]M)
	r.memberships = make(map[string]map[string]struct{})
}

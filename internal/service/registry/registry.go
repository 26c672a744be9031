// Package registry tracks which live sessions are joined to which room and
// fans broadcast payloads out to them.
package registry

import "sync"

// Member is one deliverable endpoint, usually a websocket session. Deliver
// must not block: it reports false when the payload could not be queued
// (session closed, buffer full) and the registry moves on.
type Member interface {
	Deliver(payload []byte) bool
}

// Registry is the process-wide room membership map. A room exists exactly as
// long as it has members; there is no create step.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[Member]struct{}
}

func New() *Registry {
	return &Registry{rooms: make(map[string]map[Member]struct{})}
}

// Join adds the member to the room, creating the room on first join. Joining
// twice is a no-op, so a member never receives duplicate deliveries.
func (r *Registry) Join(roomID string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[Member]struct{})
		r.rooms[roomID] = members
	}
	members[m] = struct{}{}
}

// Leave removes the member. Absent members and absent rooms are tolerated so
// a double disconnect is harmless. Empty rooms are dropped.
func (r *Registry) Leave(roomID string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Broadcast delivers payload to every current member of the room, including
// the sender if it is joined. Delivery is best-effort per member; failures
// are counted but never surfaced. Returns the number of successful
// deliveries.
func (r *Registry) Broadcast(roomID string, payload []byte) int {
	r.mu.Lock()
	members, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	snapshot := make([]Member, 0, len(members))
	for m := range members {
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	delivered := 0
	for _, m := range snapshot {
		if m.Deliver(payload) {
			delivered++
		}
	}
	return delivered
}

// Members reports the current member count for a room.
func (r *Registry) Members(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}

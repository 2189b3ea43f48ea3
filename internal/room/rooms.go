package room

import "sync"

// Index is the membership index and moderator tracker. Room entries are
// created lazily on first join and garbage-collected when the member set
// empties; the moderator, if set, is always a current member.
type Index struct {
	mu    sync.RWMutex
	rooms map[string]*entry // roomCode -> entry
}

// entry keeps members in join order so moderator failover is deterministic.
type entry struct {
	order     []string            // connectionIDs in join order
	members   map[string]struct{} // membership set for O(1) checks
	moderator string              // empty when no moderator assigned
}

// NewIndex creates an empty room index.
func NewIndex() *Index {
	return &Index{
		rooms: make(map[string]*entry),
	}
}

// Join adds a connection to a room, creating the room entry on first join.
// Idempotent.
func (i *Index) Join(roomCode, connectionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, exists := i.rooms[roomCode]
	if !exists {
		e = &entry{members: make(map[string]struct{})}
		i.rooms[roomCode] = e
	}

	if _, member := e.members[connectionID]; member {
		return
	}
	e.members[connectionID] = struct{}{}
	e.order = append(e.order, connectionID)
}

// Leave removes a connection from a room. The room entry is discarded when
// its member set empties, which also unsets any moderator. Idempotent.
func (i *Index) Leave(roomCode, connectionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, exists := i.rooms[roomCode]
	if !exists {
		return
	}
	if _, member := e.members[connectionID]; !member {
		return
	}

	delete(e.members, connectionID)
	for n, id := range e.order {
		if id == connectionID {
			e.order = append(e.order[:n], e.order[n+1:]...)
			break
		}
	}
	if e.moderator == connectionID {
		e.moderator = ""
	}

	if len(e.members) == 0 {
		delete(i.rooms, roomCode)
	}
}

// Members returns the room's member connection ids in join order. Empty
// slice for an unknown room.
func (i *Index) Members(roomCode string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	e, exists := i.rooms[roomCode]
	if !exists {
		return nil
	}
	members := make([]string, len(e.order))
	copy(members, e.order)
	return members
}

// IsMember reports whether a connection currently belongs to a room.
func (i *Index) IsMember(roomCode, connectionID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	e, exists := i.rooms[roomCode]
	if !exists {
		return false
	}
	_, member := e.members[connectionID]
	return member
}

// Moderator returns the room's moderator connection id, or ok=false when
// the room has none assigned.
func (i *Index) Moderator(roomCode string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	e, exists := i.rooms[roomCode]
	if !exists || e.moderator == "" {
		return "", false
	}
	return e.moderator, true
}

// IsModerator is the predicate gating moderator-only actions.
func (i *Index) IsModerator(roomCode, connectionID string) bool {
	moderator, ok := i.Moderator(roomCode)
	return ok && moderator == connectionID
}

// AssignModerator sets the room's moderator if the room currently has none
// and the candidate is a member. Returns whether the assignment happened;
// an incumbent is never displaced.
func (i *Index) AssignModerator(roomCode, connectionID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, exists := i.rooms[roomCode]
	if !exists || e.moderator != "" {
		return false
	}
	if _, member := e.members[connectionID]; !member {
		return false
	}
	e.moderator = connectionID
	return true
}

// PromoteSuccessor picks the first remaining member in join order as the new
// moderator after the previous one left. Returns the successor id, or
// ok=false when the room is gone or a moderator is still assigned.
func (i *Index) PromoteSuccessor(roomCode string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, exists := i.rooms[roomCode]
	if !exists || e.moderator != "" || len(e.order) == 0 {
		return "", false
	}
	e.moderator = e.order[0]
	return e.moderator, true
}

// RoomsOf returns the codes of every room a connection belongs to. Used by
// the disconnect path, which must process all memberships before the
// identity record goes away.
func (i *Index) RoomsOf(connectionID string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var codes []string
	for code, e := range i.rooms {
		if _, member := e.members[connectionID]; member {
			codes = append(codes, code)
		}
	}
	return codes
}

// Count returns the number of live room entries, for stats reporting.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.rooms)
}

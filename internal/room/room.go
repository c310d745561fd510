package room

import "sync"

// Room is a plain container over the participant map plus a generation
// counter that increments on every membership change. Broadcast loops iterate
// over [Room.Snapshot] so they never hold the room lock across delivery.
type Room struct {
	id string

	mu           sync.Mutex
	participants map[string]Participant
	generation   uint64
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		id:           id,
		participants: make(map[string]Participant),
	}
}

// ID returns the client-supplied room id.
func (r *Room) ID() string { return r.id }

// Add inserts p, replacing any existing participant with the same id. The
// replaced participant (nil when there was none) is returned alongside the new
// generation; the caller closes it outside the lock.
func (r *Room) Add(p Participant) (gen uint64, replaced Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.participants[p.ID()]
	r.participants[p.ID()] = p
	r.generation++
	return r.generation, replaced
}

// addWithCounts inserts p and reports the human/agent counts after the
// insert, atomically under the room lock. The manager uses the counts for the
// auto-agent decision so two racing first joiners cannot both (or neither)
// trigger it.
func (r *Room) addWithCounts(p Participant) (gen uint64, replaced Participant, humans, agents int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.participants[p.ID()]
	r.participants[p.ID()] = p
	r.generation++
	for _, q := range r.participants {
		if q.IsAgent() {
			agents++
		} else {
			humans++
		}
	}
	return r.generation, replaced, humans, agents
}

// Remove deletes the participant with the given id and reports whether an
// entry existed.
func (r *Room) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	r.generation++
	return true
}

// removeMatching deletes and returns the entry for id, atomically checking
// that it is the expected instance when expect is non-nil. Returns nil when
// no matching entry existed.
func (r *Room) removeMatching(id string, expect Participant) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok || (expect != nil && p != expect) {
		return nil
	}
	delete(r.participants, id)
	r.generation++
	return p
}

// Get returns the participant with the given id, or nil.
func (r *Room) Get(id string) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants[id]
}

// Snapshot returns a shallow copy of the participant list, safe to iterate
// without holding the room lock.
func (r *Room) Snapshot() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// SnapshotWithGeneration returns the participant list together with the
// generation it belongs to, atomically. Membership listings carry the
// generation so receivers can tell which of two listings is newer.
func (r *Room) SnapshotWithGeneration() ([]Participant, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), r.generation
}

func (r *Room) snapshotLocked() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Generation returns the membership change counter.
func (r *Room) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Len returns the participant count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// EmptyOfHumans reports whether every remaining participant is an agent.
func (r *Room) EmptyOfHumans() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if !p.IsAgent() {
			return false
		}
	}
	return true
}

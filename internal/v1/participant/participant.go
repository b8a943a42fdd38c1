// Package participant implements the ordered participant table shared by
// the Syncer facade: a small in-memory set of currently-registered
// ParticipantIds with per-participant session epochs and rejoin-safe
// PeerJoined/PeerLeft event emission.
package participant

import (
	"sync"

	"github.com/google/uuid"
)

// ID is an opaque, globally unique participant handle. It is minted on
// WebSocket accept and never reused within the lifetime of a connection.
type ID string

// NewID mints a fresh ParticipantId.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates that s is a well-formed ParticipantId.
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// EventKind distinguishes the two presence transitions the table emits.
type EventKind int

const (
	EventPeerJoined EventKind = iota
	EventPeerLeft
)

// Event is one presence transition produced by ApplyJoin/ApplyLeave.
type Event struct {
	Kind          EventKind
	ParticipantID ID
}

// Table is an ordered, deduplicated set of active participants. Each
// participant carries a monotonically increasing session epoch allocated on
// every join, so stale messages belonging to a prior session can be told
// apart from the current one.
//
// Table is safe for concurrent use; callers own their own Table instance
// (it is never shared across Syncer facades).
type Table struct {
	mu          sync.Mutex
	order       []ID
	sessions    map[ID]uint64
	nextSession uint64
}

// NewTable constructs an empty participant table.
func NewTable() *Table {
	return &Table{
		sessions:    make(map[ID]uint64),
		nextSession: 1,
	}
}

// ApplyJoin registers p as joined. If p was already present (a rejoin), a
// PeerLeft event for the stale session is emitted strictly before the
// PeerJoined event for the new one, and a fresh session epoch is allocated.
func (t *Table) ApplyJoin(p ID) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	if _, present := t.sessions[p]; present {
		events = append(events, Event{Kind: EventPeerLeft, ParticipantID: p})
	} else {
		t.order = append(t.order, p)
	}

	t.sessions[p] = t.nextSession
	t.nextSession++
	events = append(events, Event{Kind: EventPeerJoined, ParticipantID: p})
	return events
}

// ApplyLeave removes p if present. Idempotent: leaving an already-absent
// participant emits nothing.
func (t *Table) ApplyLeave(p ID) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, present := t.sessions[p]; !present {
		return nil
	}
	delete(t.sessions, p)
	for i, q := range t.order {
		if q == p {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return []Event{{Kind: EventPeerLeft, ParticipantID: p}}
}

// Participants returns the currently-active participants in original join
// order. The returned slice is a copy; callers may mutate it freely.
func (t *Table) Participants() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ID, len(t.order))
	copy(out, t.order)
	return out
}

// IsRegistered reports whether p currently has an active session.
func (t *Table) IsRegistered(p ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[p]
	return ok
}

// SessionEpoch returns the current session epoch for p, if registered.
func (t *Table) SessionEpoch(p ID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	epoch, ok := t.sessions[p]
	return epoch, ok
}

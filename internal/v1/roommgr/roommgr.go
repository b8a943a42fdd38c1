// Package roommgr implements the Room Manager: the Signaling Server's
// exclusive, in-memory mapping from RoomId to an ordered, capacity-bounded
// list of participants.
package roommgr

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/metrics"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
)

// MaxParticipants is the capacity of a single room.
const MaxParticipants = 8

// ID is an opaque, globally unique room handle.
type ID string

// NewID mints a fresh RoomId.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates that s is a well-formed RoomId.
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

var (
	// ErrRoomNotFound is returned when the referenced room has never
	// existed or has already been deleted (the Room Manager deletes
	// rooms the moment their last participant leaves).
	ErrRoomNotFound = errors.New("roommgr: room not found")
	// ErrRoomFull is returned by JoinRoom when the room is already at
	// MaxParticipants and the joiner is not already a member.
	ErrRoomFull = errors.New("roommgr: room is full")
)

// Snapshot is a read-only view of one room, used by the moderator/admin API.
type Snapshot struct {
	RoomID           ID
	ParticipantCount int
}

// Manager owns every active Room. The Signaling Server is the sole owner of
// one Manager instance; it is the only piece of shared mutable state on the
// signaling hot path, guarded by a single mutex held only across the length
// of one operation (never across a socket write).
type Manager struct {
	mu    sync.Mutex
	rooms map[ID][]participant.ID
}

// NewManager constructs an empty Room Manager.
func NewManager() *Manager {
	return &Manager{rooms: make(map[ID][]participant.ID)}
}

// CreateRoom mints a fresh RoomId and registers owner as its sole member.
func (m *Manager) CreateRoom(owner participant.ID) (ID, []participant.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := NewID()
	list := []participant.ID{owner}
	m.rooms[id] = list

	metrics.ActiveRooms.Inc()
	metrics.RoomParticipants.WithLabelValues(string(id)).Set(1)
	return id, append([]participant.ID(nil), list...)
}

// JoinRoom adds p to the room if it exists and has capacity. A participant
// already present is a no-op and returns the current list (idempotent
// rejoin-through-signaling).
func (m *Manager) JoinRoom(id ID, p participant.ID) ([]participant.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if !containsParticipant(list, p) {
		if len(list) >= MaxParticipants {
			return nil, ErrRoomFull
		}
		list = append(list, p)
		m.rooms[id] = list
		metrics.RoomParticipants.WithLabelValues(string(id)).Set(float64(len(list)))
	}

	return append([]participant.ID(nil), list...), nil
}

// LeaveRoom removes p from the room if present. When the room becomes
// empty it is deleted and an empty, non-nil list is returned so callers can
// still broadcast "no participants remain" to anyone who still held a
// reference. found is false only when the room never existed.
func (m *Manager) LeaveRoom(id ID, p participant.ID) (remaining []participant.ID, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.rooms[id]
	if !ok {
		return nil, false
	}

	next := make([]participant.ID, 0, len(list))
	for _, q := range list {
		if q != p {
			next = append(next, q)
		}
	}

	if len(next) == 0 {
		delete(m.rooms, id)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(id))
		return []participant.ID{}, true
	}

	m.rooms[id] = next
	metrics.RoomParticipants.WithLabelValues(string(id)).Set(float64(len(next)))
	return append([]participant.ID(nil), next...), true
}

// Participants returns the current member list of id, if it exists.
func (m *Manager) Participants(id ID) ([]participant.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.rooms[id]
	if !ok {
		return nil, false
	}
	return append([]participant.ID(nil), list...), true
}

// Snapshot returns a point-in-time view of every active room, used by the
// moderator/admin API's GET /admin/rooms endpoint.
func (m *Manager) Snapshot() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.rooms))
	for id, list := range m.rooms {
		out = append(out, Snapshot{RoomID: id, ParticipantCount: len(list)})
	}
	return out
}

func containsParticipant(list []participant.ID, p participant.ID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

package signaling

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/metrics"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// PresenceObserver is the narrow capability the Presence Mirror satisfies.
// It is called only after the authoritative in-memory broadcast has
// already happened; Handler never waits on it and never reads state back
// from it.
type PresenceObserver interface {
	OnPeerJoined(roomID roommgr.ID, participantID participant.ID)
	OnPeerLeft(roomID roommgr.ID, participantID participant.ID)
}

type noopPresenceObserver struct{}

func (noopPresenceObserver) OnPeerJoined(roommgr.ID, participant.ID) {}
func (noopPresenceObserver) OnPeerLeft(roommgr.ID, participant.ID)   {}

// Handler is the Signaling Protocol Handler: it owns the Room Manager and
// the process-wide registry of connected participants, and drives every
// connection's CreateRoom/JoinRoom/LeaveRoom/Offer/Answer/IceCandidate
// exchange.
type Handler struct {
	rooms    *roommgr.Manager
	presence PresenceObserver

	mu      sync.Mutex
	clients map[participant.ID]*connection

	allowedOrigins func(r *http.Request) bool
}

// NewHandler constructs a Handler over rooms. checkOrigin is used as the
// websocket upgrader's origin check; nil keeps the upgrader's default check,
// which rejects a request whose Origin header names a host other than the
// request's Host (this endpoint has no auth boundary of its own).
func NewHandler(rooms *roommgr.Manager, presence PresenceObserver, checkOrigin func(r *http.Request) bool) *Handler {
	if presence == nil {
		presence = noopPresenceObserver{}
	}
	return &Handler{
		rooms:          rooms,
		presence:       presence,
		clients:        make(map[participant.ID]*connection),
		allowedOrigins: checkOrigin,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ServeWS upgrades an incoming HTTP request to a signaling WebSocket,
// mints a fresh ParticipantId for the connection, and starts its
// readPump/writePump goroutine pair.
func (h *Handler) ServeWS(c *gin.Context) {
	upgrader.CheckOrigin = h.allowedOrigins
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	id := participant.NewID()
	conn2 := newConnection(conn, id, h)

	h.mu.Lock()
	h.clients[id] = conn2
	h.mu.Unlock()

	metrics.IncConnection()

	go conn2.writePump()
	go conn2.readPump()
}

func (h *Handler) lookup(id participant.ID) (*connection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Handler) unregister(id participant.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Kick force-closes participantID's signaling WebSocket, driving the same
// abnormal-close path a transport failure would (broadcast PeerDisconnected
// and RoomParticipants, notify the Presence Mirror, deregister). It is the
// moderator/admin API's only way to remove a participant; it never touches
// the Room Manager directly. Reports whether the participant was connected.
func (h *Handler) Kick(participantID participant.ID) bool {
	c, ok := h.lookup(participantID)
	if !ok {
		return false
	}
	c.conn.Close()
	return true
}

func (h *Handler) dispatch(c *connection, msg *inboundMessage) {
	switch msg.Kind {
	case inboundCreateRoom:
		h.handleCreateRoom(c)
	case inboundJoinRoom:
		h.handleJoinRoom(c, msg.RoomID)
	case inboundLeaveRoom:
		h.handleLeaveRoom(c)
	case inboundOffer:
		h.handleRelay(c, msg.To, relayOffer, msg.SDP, "")
	case inboundAnswer:
		h.handleRelay(c, msg.To, relayAnswer, msg.SDP, "")
	case inboundIceCandidate:
		h.handleRelay(c, msg.To, relayIce, "", msg.Candidate)
	}
}

func (h *Handler) handleCreateRoom(c *connection) {
	roomID, _ := h.rooms.CreateRoom(c.id)
	c.setRoom(roomID)
	c.enqueue(roomCreated(string(roomID), string(c.id)))
	h.presence.OnPeerJoined(roomID, c.id)
}

func (h *Handler) handleJoinRoom(c *connection, rawRoomID string) {
	roomID, err := roommgr.ParseID(rawRoomID)
	if err != nil {
		c.enqueue(errorFrame(ErrorInvalidPayload, "malformed room id"))
		return
	}

	participants, err := h.rooms.JoinRoom(roomID, c.id)
	switch {
	case err == roommgr.ErrRoomNotFound:
		c.enqueue(errorFrame(ErrorInternal, "room not found"))
		return
	case err == roommgr.ErrRoomFull:
		c.enqueue(errorFrame(ErrorRoomFull, "room is full"))
		return
	case err != nil:
		c.enqueue(errorFrame(ErrorInternal, err.Error()))
		return
	}

	c.setRoom(roomID)
	h.broadcastRoomParticipants(roomID, participants)
	h.presence.OnPeerJoined(roomID, c.id)
}

func (h *Handler) handleLeaveRoom(c *connection) {
	roomID, joined := c.currentRoom()
	if !joined {
		c.enqueue(errorFrame(ErrorInvalidPayload, "not in a room"))
		return
	}
	h.leaveRoom(c, roomID)
}

// leaveRoom implements the shared explicit-leave/abnormal-close path:
// PeerDisconnected is broadcast to every remaining participant before
// RoomParticipants is, in two full passes, matching the ordering the
// Signaling Protocol Handler is specified to preserve.
func (h *Handler) leaveRoom(c *connection, roomID roommgr.ID) {
	remaining, found := h.rooms.LeaveRoom(roomID, c.id)
	c.clearRoom()
	if !found {
		return
	}

	disconnected := peerDisconnected(string(c.id))
	for _, p := range remaining {
		if target, ok := h.lookup(p); ok {
			target.enqueue(disconnected)
		}
	}

	if len(remaining) > 0 {
		payload := roomParticipants(string(roomID), idsToStrings(remaining))
		for _, p := range remaining {
			if target, ok := h.lookup(p); ok {
				target.enqueue(payload)
			}
		}
	}

	h.presence.OnPeerLeft(roomID, c.id)
}

// handleAbnormalClose is invoked from a connection's readPump defer: a
// dropped socket (ping timeout, client crash, network loss) follows the
// same broadcast path an explicit LeaveRoom does, deduplicated per
// connection so a connection can never trigger it twice.
func (h *Handler) handleAbnormalClose(c *connection) {
	c.closedOnce.Do(func() {
		if roomID, joined := c.currentRoom(); joined {
			h.leaveRoom(c, roomID)
		}
		h.unregister(c.id)
	})
}

// broadcastRoomParticipants sends the current member list to every
// participant in it, including the one who just triggered the change —
// the re-offer/rejoin path for the Signaling Protocol Handler relies on
// the joiner itself observing its own membership.
func (h *Handler) broadcastRoomParticipants(roomID roommgr.ID, participants []participant.ID) {
	payload := roomParticipants(string(roomID), idsToStrings(participants))
	for _, p := range participants {
		if target, ok := h.lookup(p); ok {
			target.enqueue(payload)
		}
	}
}

type relayKind int

const (
	relayOffer relayKind = iota
	relayAnswer
	relayIce
)

// handleRelay implements the pure-routing Offer/Answer/IceCandidate
// forwarding: no Room Manager mutation, just a lookup of the target
// connection within the sender's current room.
func (h *Handler) handleRelay(c *connection, rawTo string, kind relayKind, sdp, candidate string) {
	roomID, joined := c.currentRoom()
	if !joined {
		c.enqueue(errorFrame(ErrorInvalidPayload, "not in a room"))
		return
	}

	if !c.limiter.CheckAndRecord() {
		c.enqueue(errorFrame(ErrorRateLimited, "rate limit exceeded"))
		return
	}

	to, err := participant.ParseID(rawTo)
	if err != nil {
		c.enqueue(errorFrame(ErrorInvalidPayload, "malformed participant id"))
		return
	}

	members, ok := h.rooms.Participants(roomID)
	if !ok || !containsParticipant(members, to) {
		c.enqueue(errorFrame(ErrorParticipantNotFound, "unknown participant"))
		return
	}

	target, ok := h.lookup(to)
	if !ok {
		c.enqueue(errorFrame(ErrorParticipantNotFound, "unknown participant"))
		return
	}

	switch kind {
	case relayOffer:
		target.enqueue(offerFrame(string(c.id), sdp))
	case relayAnswer:
		target.enqueue(answerFrame(string(c.id), sdp))
	case relayIce:
		target.enqueue(iceCandidateFrame(string(c.id), candidate))
	}
}

func containsParticipant(list []participant.ID, p participant.ID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

func idsToStrings(ids []participant.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

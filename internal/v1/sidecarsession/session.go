// Package sidecarsession implements the Sidecar Session: the /sidecar
// local-client-facing WebSocket that is, in the same breath, a WebSocket
// client dialing out to the Signaling Server. Each session exclusively
// owns one Syncer facade and the Transport (a shared, room-scoped Bus) that
// Syncer drives, per the "each Sidecar Session exclusively owns its
// Syncer" ownership rule.
package sidecarsession

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/logging"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/metrics"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/ratelimit"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/router"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/syncer"
)

// pollInterval is how often a joined session drains its Syncer for
// peer-originated traffic between client-driven requests, mirroring the
// original sidecar's 10ms poll_tick.
const pollInterval = 10 * time.Millisecond

// Handler serves the /sidecar endpoint. One Handler is shared by every
// local connection on this process; it owns only the room-scoped Bus
// registry, never any per-session state.
type Handler struct {
	token string
	hub   *busHub
}

// NewHandler constructs a Handler that authenticates every connection
// against token (SIDECAR_TOKEN).
func NewHandler(token string) *Handler {
	return &Handler{token: token, hub: newBusHub()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS authenticates the incoming request (Origin: null plus a
// constant-time Bearer token check) before ever upgrading the connection,
// then runs the session to completion in a new goroutine.
func (h *Handler) ServeWS(c *gin.Context) {
	if err := checkOrigin(c.Request); err != nil {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if err := checkBearerToken(c.Request, h.token); err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s := &session{conn: conn, hub: h.hub}
	go s.run()
}

// session is one local client's Sidecar Session. Every field it touches
// after construction is only ever touched from its own run() goroutine;
// there is exactly one writer and one synchronous handler of the local
// socket, so no internal mutex is needed.
type session struct {
	conn *websocket.Conn
	hub  *busHub

	syncer        *syncer.Syncer
	bloom         *bloomSession
	roomID        roommgr.ID
	participantID participant.ID
	joined        bool
	leaveOnce     sync.Once
}

func (s *session) run() {
	metrics.SidecarSessionsActive.Inc()
	defer metrics.SidecarSessionsActive.Dec()
	defer s.teardown()

	frames := make(chan []byte)
	go s.readLoop(frames)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			s.handleFrame(data)
		case <-ticker.C:
			if s.joined {
				s.dispatchEvents(s.syncer.PollOnly())
			}
		}
	}
}

func (s *session) readLoop(out chan<- []byte) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		out <- data
	}
}

func (s *session) teardown() {
	s.leaveOnce.Do(func() {
		if s.joined {
			s.bloom.leaveRoom()
		}
	})
	s.bloom.close()
	s.conn.Close()
}

func (s *session) handleFrame(data []byte) {
	f, err := decodeClientFrame(data)
	if err != nil {
		s.send(errorFrame(errorInvalidPayload, "malformed frame"))
		return
	}

	switch f.Type {
	case "Join":
		if s.joined {
			return
		}
		s.handleJoin(f)
	case "SendPose":
		s.handleSendPose(f)
	default:
		s.send(errorFrame(errorInvalidPayload, "unknown message type"))
	}
}

func (s *session) handleJoin(f *clientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*joinDeadline)
	defer cancel()

	roomID, selfID, participants, bloom, err := joinViaBloomSession(ctx, f.BloomWSURL, f.RoomID)
	if err != nil {
		metrics.SidecarBloomJoinFailures.WithLabelValues("join_failed").Inc()
		logging.Warn(ctx, "sidecar session failed to join via bloom", zap.Error(err))
		s.send(errorFrame(errorSignalingError, err.Error()))
		return
	}

	rid, errRoom := roommgr.ParseID(roomID)
	pid, errSelf := participant.ParseID(selfID)
	if errRoom != nil || errSelf != nil {
		bloom.close()
		s.send(errorFrame(errorSignalingError, "malformed ids from signaling server"))
		return
	}

	bus := s.hub.busFor(rid)
	tr := bus.ForParticipant(pid)
	table := participant.NewTable()
	rtr := router.New()
	limiter := ratelimit.NewSessionLimiter(ratelimit.RealClock{}, 20, time.Second)
	s.syncer = syncer.New(table, rtr, limiter, tr)

	existing := make([]participant.ID, 0, len(participants))
	for _, p := range participants {
		if p == selfID {
			continue
		}
		if pp, err := participant.ParseID(p); err == nil {
			existing = append(existing, pp)
		}
	}
	s.syncer.Handle(syncer.JoinRequest(rid, pid, existing))

	s.bloom = bloom
	s.roomID = rid
	s.participantID = pid
	s.joined = true

	s.send(selfJoinedFrame(roomID, selfID, participants))
}

func (s *session) handleSendPose(f *clientFrame) {
	if !s.joined {
		s.send(errorFrame(errorNotJoined, "not joined"))
		return
	}

	pose, ok := decodePoseFrame(f)
	if !ok {
		s.send(errorFrame(errorInvalidPayload, "invalid pose payload"))
		return
	}

	s.dispatchEvents(s.syncer.Handle(syncer.SendPoseRequest(pose)))
}

// dispatchEvents translates Syncer events into wire frames. Only
// PoseReceived, RateLimited and Error are surfaced at the Sidecar
// boundary; PeerJoined/PeerLeft/ChatReceived/VoiceFrameReceived have no
// wire representation here (the boundary is pose-only by design, see
// DESIGN.md's Open Question resolution on this).
func (s *session) dispatchEvents(events []syncer.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case syncer.EventPoseReceived:
			metrics.SyncerStreamEvents.WithLabelValues("pose", "delivered").Inc()
			s.send(poseReceivedFrame(string(ev.From), ev.Pose))
		case syncer.EventRateLimited:
			metrics.SyncerStreamEvents.WithLabelValues(string(ev.StreamKind), "rate_limited").Inc()
			s.send(rateLimitedFrame(string(ev.StreamKind)))
		case syncer.EventError:
			metrics.SyncerStreamEvents.WithLabelValues("pose", "error").Inc()
			s.send(errorFrame(errorInvalidPayload, "invalid inbound payload"))
		}
	}
}

func (s *session) send(data []byte) {
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Warn(context.Background(), "sidecar session write failed", zap.String("participantId", s.participantID.String()), zap.Error(err))
	}
}

// Package presence implements the Presence Mirror: a best-effort publisher
// that mirrors RoomParticipants/PeerConnected/PeerDisconnected transitions
// onto a Redis pub/sub channel, for an external process (an analytics
// consumer, a second region's dashboard) to observe. It never feeds state
// back into the Signaling Protocol Handler; horizontal scale-out of room
// state itself stays out of scope, matching the distilled spec's Non-goal.
package presence

import (
	"context"
	"time"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/bus"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/logging"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/metrics"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// Mirror satisfies signaling.PresenceObserver. It is constructed over the
// same bus.Service the rest of the process uses, so it inherits that
// Service's nil-safety and circuit breaker for free: a nil or
// circuit-open Service makes every call here a silent no-op.
type Mirror struct {
	svc *bus.Service
}

// New constructs a Mirror over svc. Passing a nil svc is valid and yields a
// Mirror that never publishes anything, used when REDIS_ENABLED is false.
func New(svc *bus.Service) *Mirror {
	return &Mirror{svc: svc}
}

var _ interface {
	OnPeerJoined(roomID roommgr.ID, participantID participant.ID)
	OnPeerLeft(roomID roommgr.ID, participantID participant.ID)
} = (*Mirror)(nil)

// OnPeerJoined mirrors a PeerConnected transition. Called after the
// signaling hub has already broadcast RoomParticipants to every live
// connection; this publish is purely observational and never blocks the
// caller beyond publishTimeout.
func (m *Mirror) OnPeerJoined(roomID roommgr.ID, participantID participant.ID) {
	m.publish(roomID, "peer_joined", participantID)
}

// OnPeerLeft mirrors a PeerDisconnected transition.
func (m *Mirror) OnPeerLeft(roomID roommgr.ID, participantID participant.ID) {
	m.publish(roomID, "peer_left", participantID)
}

func (m *Mirror) publish(roomID roommgr.ID, event string, participantID participant.ID) {
	if m == nil || m.svc == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	// bus.Service.Publish already swallows a circuit-open failure and
	// returns nil (see its own CircuitBreakerFailures accounting); an
	// error surfacing here is a genuine Redis-side failure that bypassed
	// that degradation path.
	payload := map[string]string{"participant_id": string(participantID)}
	if err := m.svc.Publish(ctx, string(roomID), event, payload, string(participantID), nil); err != nil {
		metrics.PresenceMirrorPublishes.WithLabelValues(event, "dropped").Inc()
		logging.Warn(ctx, "presence mirror publish failed", zap.String("roomId", string(roomID)), zap.String("event", event), zap.Error(err))
		return
	}
	metrics.PresenceMirrorPublishes.WithLabelValues(event, "published").Inc()
}

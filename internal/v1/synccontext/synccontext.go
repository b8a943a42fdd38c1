// Package synccontext holds the small, dependency-free types threaded
// through every Syncer-facing component: the stream kind tag and the
// TracingContext triple the Syncer facade attaches to the events it
// returns.
package synccontext

import (
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// StreamKind tags which of the wire streams a message or rate-limit
// decision belongs to. Values match the wire strings used by the Sidecar's
// RateLimited frame and the envelope Kind tags one-for-one.
type StreamKind string

const (
	Pose            StreamKind = "pose"
	Chat            StreamKind = "chat"
	Voice           StreamKind = "voice"
	ControlJoin     StreamKind = "control.join"
	ControlLeave    StreamKind = "control.leave"
	SignalingOffer  StreamKind = "signaling.offer"
	SignalingAnswer StreamKind = "signaling.answer"
	SignalingIce    StreamKind = "signaling.ice"
)

// TracingContext is attached to every inbound/outbound sync event so that
// logging and OpenTelemetry spans can be keyed on the same triple.
type TracingContext struct {
	RoomID        roommgr.ID
	ParticipantID participant.ID
	StreamKind    StreamKind
}

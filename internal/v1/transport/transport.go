// Package transport defines the abstract Transport/Inbox contract the
// Syncer facade is built against (§4.6), and ships the one concrete
// implementation used by this repo's tests and single-process
// deployment: an in-memory message bus standing in for the real WebRTC
// data channel / audio track stack, which is out of scope.
package transport

import (
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/synccontext"
)

// Payload is either envelope-encoded bytes or a raw audio frame. Exactly
// one of the two is populated; audio frames are never passed through the
// envelope codec.
type Payload struct {
	Bytes []byte
	Audio []byte
}

// BytesPayload wraps envelope-encoded bytes.
func BytesPayload(b []byte) Payload { return Payload{Bytes: b} }

// AudioPayload wraps a raw audio frame.
func AudioPayload(frame []byte) Payload { return Payload{Audio: frame} }

// IsAudio reports whether the payload carries a raw audio frame rather
// than envelope bytes.
func (p Payload) IsAudio() bool { return p.Audio != nil }

// SendParams selects the data-channel delivery semantics for one send.
type SendParams struct {
	Ordered  bool
	Reliable bool
	Audio    bool
}

// ParamsFor returns the wire delivery parameters mandated for kind:
// ordered+reliable for chat and control, unordered+unreliable for pose,
// and the dedicated audio track for voice.
func ParamsFor(kind synccontext.StreamKind) SendParams {
	switch kind {
	case synccontext.Voice:
		return SendParams{Audio: true}
	case synccontext.Pose:
		return SendParams{Ordered: false, Reliable: false}
	default:
		return SendParams{Ordered: true, Reliable: true}
	}
}

// Received is the payload half of a TransportEvent.
type Received struct {
	From    participant.ID
	Payload Payload
}

// Failure reports that delivery to/from Peer can no longer be relied on
// (e.g. an ICE/DTLS failure on the real stack, or a simulated failure in
// tests).
type Failure struct {
	Peer participant.ID
}

// Event is the sum type Poll returns: exactly one of Received or Failure
// is populated.
type Event struct {
	Received *Received
	Failure  *Failure
}

// ReceivedEvent constructs a Received transport event.
func ReceivedEvent(from participant.ID, payload Payload) Event {
	return Event{Received: &Received{From: from, Payload: payload}}
}

// FailureEvent constructs a Failure transport event.
func FailureEvent(peer participant.ID) Event {
	return Event{Failure: &Failure{Peer: peer}}
}

// Transport is the capability set the Syncer facade depends on. Any
// concrete media stack (real WebRTC, or this package's in-process Bus)
// satisfies it.
type Transport interface {
	// RegisterParticipant marks the caller's own participant id as
	// registered. Sends issued before registration are dropped.
	RegisterParticipant(p participant.ID)
	// Send enqueues payload for delivery to `to` under params.
	Send(to participant.ID, payload Payload, params SendParams)
	// Poll returns and clears pending transport events.
	Poll() []Event
}

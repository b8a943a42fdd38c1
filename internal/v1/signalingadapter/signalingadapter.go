// Package signalingadapter bridges the Signaling Server's Offer/Answer/ICE
// frames to and from the Syncer's internal envelope form. It is the one
// place a re-offer for an already-known participant is detected and
// turned into an ordered PeerLeft/PeerJoined pair, and the one place a
// PeerConnectionCloser is invoked — never more than once per peer across
// its lifetime.
package signalingadapter

import (
	"sync"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// PeerConnectionCloser is the narrow capability the adapter needs to tear
// down a peer's underlying connection resources. It never implements
// connection teardown itself; the real implementation lives wherever the
// concrete peer connection (or, in this repo, the in-process Bus
// transport) is owned.
type PeerConnectionCloser interface {
	Close(p participant.ID)
}

// EventKind tags one Event an inbound Offer/Answer/ICE handler returns.
type EventKind int

const (
	EventPeerLeft EventKind = iota
	EventPeerJoined
	EventError
)

// ErrorKind enumerates the error classes this adapter surfaces.
type ErrorKind int

const (
	ErrorInvalidPayload ErrorKind = iota
)

// Event is the presence/error side effect of one inbound frame.
type Event struct {
	Kind          EventKind
	ParticipantID participant.ID
	Error         ErrorKind
}

// Adapter holds the static context (room id, auth token, ICE policy)
// every outbound signaling envelope is stamped with, plus the per-peer
// "have we seen an Offer from this participant before" and
// "has this peer already been closed" state.
type Adapter struct {
	roomID    roommgr.ID
	authToken string
	icePolicy string
	closer    PeerConnectionCloser

	mu     sync.Mutex
	known  map[participant.ID]bool
	closed map[participant.ID]bool
}

// New constructs an Adapter for one room.
func New(roomID roommgr.ID, authToken, icePolicy string, closer PeerConnectionCloser) *Adapter {
	return &Adapter{
		roomID:    roomID,
		authToken: authToken,
		icePolicy: icePolicy,
		closer:    closer,
		known:     make(map[participant.ID]bool),
		closed:    make(map[participant.ID]bool),
	}
}

func (a *Adapter) closeOnce(p participant.ID) {
	if a.closed[p] {
		return
	}
	a.closed[p] = true
	a.closer.Close(p)
}

// HandleInboundOffer validates an inbound Offer from p and wraps it into
// envelope form for the Syncer side. A re-offer for an already-known
// participant closes the previous peer connection exactly once and emits
// PeerLeft then PeerJoined, in that order, before the new offer is
// forwarded. An invalid offer (e.g. empty SDP) emits Error{InvalidPayload}
// and PeerLeft, and still closes exactly once.
func (a *Adapter) HandleInboundOffer(p participant.ID, sdp string) (*envelope.Envelope, []Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	env, err := envelope.EncodeSignalingOffer(envelope.SignalingOffer{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(p),
		AuthToken:     a.authToken,
		IcePolicy:     a.icePolicy,
		SDP:           sdp,
	})
	if err != nil {
		a.closeOnce(p)
		return nil, []Event{
			{Kind: EventError, ParticipantID: p, Error: ErrorInvalidPayload},
			{Kind: EventPeerLeft, ParticipantID: p},
		}
	}

	var events []Event
	if a.known[p] {
		a.closeOnce(p)
		events = []Event{
			{Kind: EventPeerLeft, ParticipantID: p},
			{Kind: EventPeerJoined, ParticipantID: p},
		}
	}
	a.known[p] = true
	return env, events
}

// HandleInboundAnswer validates an inbound Answer from p and wraps it into
// envelope form. Answers never carry presence events.
func (a *Adapter) HandleInboundAnswer(p participant.ID, sdp string) (*envelope.Envelope, []Event) {
	env, err := envelope.EncodeSignalingAnswer(envelope.SignalingAnswer{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(p),
		AuthToken:     a.authToken,
		SDP:           sdp,
	})
	if err != nil {
		a.mu.Lock()
		a.closeOnce(p)
		a.mu.Unlock()
		return nil, []Event{
			{Kind: EventError, ParticipantID: p, Error: ErrorInvalidPayload},
			{Kind: EventPeerLeft, ParticipantID: p},
		}
	}
	return env, nil
}

// HandleInboundIce validates an inbound ICE candidate from p and wraps it
// into envelope form. ICE candidates never carry presence events.
func (a *Adapter) HandleInboundIce(p participant.ID, candidate string, sdpMid *string, sdpMLineIndex *uint16) (*envelope.Envelope, []Event) {
	env, err := envelope.EncodeSignalingIce(envelope.SignalingIce{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(p),
		AuthToken:     a.authToken,
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	})
	if err != nil {
		a.mu.Lock()
		a.closeOnce(p)
		a.mu.Unlock()
		return nil, []Event{
			{Kind: EventError, ParticipantID: p, Error: ErrorInvalidPayload},
			{Kind: EventPeerLeft, ParticipantID: p},
		}
	}
	return env, nil
}

// SendOffer translates a Syncer-originated Offer destined for `to` back
// into signaling server frame form. The auth token always comes from the
// adapter's own static context, never from the caller.
func (a *Adapter) SendOffer(to participant.ID, sdp string) (*envelope.Envelope, error) {
	return envelope.EncodeSignalingOffer(envelope.SignalingOffer{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(to),
		AuthToken:     a.authToken,
		IcePolicy:     a.icePolicy,
		SDP:           sdp,
	})
}

// SendAnswer translates a Syncer-originated Answer destined for `to`.
func (a *Adapter) SendAnswer(to participant.ID, sdp string) (*envelope.Envelope, error) {
	return envelope.EncodeSignalingAnswer(envelope.SignalingAnswer{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(to),
		AuthToken:     a.authToken,
		SDP:           sdp,
	})
}

// SendIce translates a Syncer-originated ICE candidate destined for `to`.
func (a *Adapter) SendIce(to participant.ID, candidate string, sdpMid *string, sdpMLineIndex *uint16) (*envelope.Envelope, error) {
	return envelope.EncodeSignalingIce(envelope.SignalingIce{
		Version:       1,
		RoomID:        string(a.roomID),
		ParticipantID: string(to),
		AuthToken:     a.authToken,
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	})
}

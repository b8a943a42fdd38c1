// Package syncer implements the Syncer Facade: the per-session owner of a
// Participant Table, Router, rate limiter and Transport, exposed as a
// small request/event machine so callers (the Sidecar Session) never
// touch those pieces directly.
package syncer

import (
	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/ratelimit"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/router"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/synccontext"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/transport"
)

// RequestKind tags one Request.
type RequestKind int

const (
	RequestJoin RequestKind = iota
	RequestSendPose
	RequestSendChat
	RequestSendVoiceFrame
)

// JoinParams carries the fields of a Join request. ExistingParticipants
// seeds the local Participant Table with whoever the Room Manager already
// reported as present in room_id at join time (the Syncer facade has no
// other way of learning about peers who joined before it did); it is
// applied silently, without synthesizing PeerJoined events for entries
// that were already present before this session started observing them.
type JoinParams struct {
	RoomID               roommgr.ID
	ParticipantID        participant.ID
	ExistingParticipants []participant.ID
}

// PoseParams carries a SendPose request.
type PoseParams struct {
	Pose envelope.PoseMessage
}

// ChatParams carries a SendChat request.
type ChatParams struct {
	Chat envelope.ChatMessage
}

// VoiceParams carries a SendVoiceFrame request.
type VoiceParams struct {
	Frame []byte
}

// Request is the tagged union Handle accepts; exactly the field matching
// Kind is populated.
type Request struct {
	Kind  RequestKind
	Join  *JoinParams
	Pose  *PoseParams
	Chat  *ChatParams
	Voice *VoiceParams
}

// JoinRequest constructs a Join request.
func JoinRequest(roomID roommgr.ID, p participant.ID, existing []participant.ID) Request {
	return Request{Kind: RequestJoin, Join: &JoinParams{RoomID: roomID, ParticipantID: p, ExistingParticipants: existing}}
}

// SendPoseRequest constructs a SendPose request.
func SendPoseRequest(pose envelope.PoseMessage) Request {
	return Request{Kind: RequestSendPose, Pose: &PoseParams{Pose: pose}}
}

// SendChatRequest constructs a SendChat request.
func SendChatRequest(chat envelope.ChatMessage) Request {
	return Request{Kind: RequestSendChat, Chat: &ChatParams{Chat: chat}}
}

// SendVoiceFrameRequest constructs a SendVoiceFrame request.
func SendVoiceFrameRequest(frame []byte) Request {
	return Request{Kind: RequestSendVoiceFrame, Voice: &VoiceParams{Frame: frame}}
}

// EventKind tags one Event returned by Handle/PollOnly.
type EventKind int

const (
	EventSelfJoined EventKind = iota
	EventPeerJoined
	EventPeerLeft
	EventPoseReceived
	EventChatReceived
	EventVoiceFrameReceived
	EventRateLimited
	EventError
)

// ErrorKind enumerates the error classes a Syncer can surface.
type ErrorKind int

const (
	ErrorInvalidPayload ErrorKind = iota
	ErrorInvalidParticipantID
)

// Event is the sum type Handle/PollOnly return, one per side effect or
// piece of inbound traffic observed.
type Event struct {
	Kind EventKind

	// SelfJoined
	RoomID       roommgr.ID
	Participants []participant.ID

	// PeerJoined / PeerLeft / Error.From / PoseReceived.From / ...
	ParticipantID participant.ID
	From          participant.ID

	Pose  envelope.PoseMessage
	Chat  envelope.ChatMessage
	Frame []byte

	StreamKind synccontext.StreamKind // RateLimited
	Error      ErrorKind

	Ctx synccontext.TracingContext
}

// Syncer owns one session's Participant Table, Router, rate limiter and
// Transport. It is not safe for concurrent use from multiple goroutines;
// callers (the Sidecar Session) serialize access to one Syncer per
// connection, matching the "each Sidecar Session exclusively owns its
// Syncer" ownership rule.
type Syncer struct {
	selfID  participant.ID
	roomID  roommgr.ID
	joined  bool
	table   *participant.Table
	router  *router.Router
	limiter *ratelimit.SessionLimiter
	inbox   *transport.Inbox
	tr      transport.Transport
}

// New constructs a Syncer over an already-constructed transport. table,
// rtr and limiter are normally fresh per session; accepting them as
// parameters keeps the Syncer itself free of any global state and makes
// every collaborator substitutable in tests.
func New(table *participant.Table, rtr *router.Router, limiter *ratelimit.SessionLimiter, tr transport.Transport) *Syncer {
	return &Syncer{table: table, router: rtr, limiter: limiter, tr: tr, inbox: transport.NewInbox()}
}

// Handle drains the inbox into events, then applies request's own
// effects, returning the concatenation in that order.
func (s *Syncer) Handle(req Request) []Event {
	events := s.drainInbox()

	switch req.Kind {
	case RequestJoin:
		events = append(events, s.handleJoin(*req.Join)...)
	case RequestSendPose:
		events = append(events, s.handleSendPose(*req.Pose)...)
	case RequestSendChat:
		events = append(events, s.handleSendChat(*req.Chat)...)
	case RequestSendVoiceFrame:
		events = append(events, s.handleSendVoiceFrame(*req.Voice)...)
	}
	return events
}

// PollOnly drains the inbox without sending anything, for use on a
// periodic poll tick between client-driven requests.
func (s *Syncer) PollOnly() []Event {
	return s.drainInbox()
}

// PushTransportEvent is a test hook: it injects ev directly into the
// inbox without going through the underlying Transport's Poll.
func (s *Syncer) PushTransportEvent(ev transport.Event) {
	s.inbox.Push(ev)
}

// RebindTransport replaces the underlying Transport after a failure. If
// this Syncer has already joined, it re-registers with the new transport
// and re-broadcasts Control.Join so that remote peers observe the
// ordered PeerLeft/PeerJoined pair for this participant's session epoch.
func (s *Syncer) RebindTransport(tr transport.Transport) {
	s.tr = tr
	if !s.joined {
		return
	}
	s.tr.RegisterParticipant(s.selfID)
	s.broadcastControlJoin()
}

func (s *Syncer) drainInbox() []Event {
	s.inbox.Push(s.tr.Poll()...)
	raw := s.inbox.Drain(s.table, s.classify)

	events := make([]Event, 0, len(raw))
	for _, ev := range raw {
		events = append(events, s.translate(ev)...)
	}
	return events
}

// classify is the Inbox's decode hook: it peeks at the envelope kind
// without fully validating the body (full validation, and the resulting
// InvalidPayload error, happens in translate once the full message is
// available).
func (s *Syncer) classify(bytes []byte) (transport.InboxEventKind, bool) {
	env, err := envelope.Decode(bytes)
	if err != nil {
		return 0, false
	}
	switch env.Kind {
	case envelope.KindPose:
		return transport.InboxPoseReceived, true
	case envelope.KindChat:
		return transport.InboxChatReceived, true
	case envelope.KindControlJoin:
		return transport.InboxPeerJoined, true
	case envelope.KindControlLeave:
		return transport.InboxPeerLeft, true
	default:
		// Signaling kinds have no place on the data channel.
		return 0, false
	}
}

func (s *Syncer) translate(ev transport.InboxEvent) []Event {
	switch ev.Kind {
	case transport.InboxPoseReceived:
		pose, ok := s.decodePose(ev.Bytes)
		if !ok {
			return []Event{s.errorEvent(ev.From, ErrorInvalidPayload, synccontext.Pose)}
		}
		return []Event{{Kind: EventPoseReceived, From: ev.From, Pose: pose, Ctx: s.ctx(ev.From, synccontext.Pose)}}
	case transport.InboxChatReceived:
		chat, ok := s.decodeChat(ev.Bytes)
		if !ok {
			return []Event{s.errorEvent(ev.From, ErrorInvalidPayload, synccontext.Chat)}
		}
		return []Event{{Kind: EventChatReceived, From: ev.From, Chat: chat, Ctx: s.ctx(ev.From, synccontext.Chat)}}
	case transport.InboxVoiceFrameReceived:
		return []Event{{Kind: EventVoiceFrameReceived, From: ev.From, Frame: ev.Audio, Ctx: s.ctx(ev.From, synccontext.Voice)}}
	case transport.InboxPeerJoined:
		return []Event{{Kind: EventPeerJoined, ParticipantID: ev.Peer, Ctx: s.ctx(ev.Peer, synccontext.ControlJoin)}}
	case transport.InboxPeerLeft:
		return []Event{{Kind: EventPeerLeft, ParticipantID: ev.Peer, Ctx: s.ctx(ev.Peer, synccontext.ControlLeave)}}
	case transport.InboxError:
		return []Event{s.errorEvent(ev.From, ErrorInvalidPayload, "")}
	default:
		return nil
	}
}

func (s *Syncer) decodePose(bytes []byte) (envelope.PoseMessage, bool) {
	env, err := envelope.Decode(bytes)
	if err != nil {
		return envelope.PoseMessage{}, false
	}
	pose, err := envelope.DecodePose(env)
	if err != nil {
		return envelope.PoseMessage{}, false
	}
	return *pose, true
}

func (s *Syncer) decodeChat(bytes []byte) (envelope.ChatMessage, bool) {
	env, err := envelope.Decode(bytes)
	if err != nil {
		return envelope.ChatMessage{}, false
	}
	chat, err := envelope.DecodeChat(env)
	if err != nil {
		return envelope.ChatMessage{}, false
	}
	return *chat, true
}

func (s *Syncer) errorEvent(from participant.ID, kind ErrorKind, stream synccontext.StreamKind) Event {
	return Event{Kind: EventError, From: from, Error: kind, Ctx: s.ctx(from, stream)}
}

func (s *Syncer) ctx(peer participant.ID, stream synccontext.StreamKind) synccontext.TracingContext {
	return synccontext.TracingContext{RoomID: s.roomID, ParticipantID: peer, StreamKind: stream}
}

func (s *Syncer) handleJoin(p JoinParams) []Event {
	s.selfID = p.ParticipantID
	s.roomID = p.RoomID
	s.tr.RegisterParticipant(p.ParticipantID)

	for _, existing := range p.ExistingParticipants {
		s.table.ApplyJoin(existing)
	}

	s.broadcastControlJoin()
	s.joined = true

	return []Event{{
		Kind:          EventSelfJoined,
		RoomID:        s.roomID,
		ParticipantID: s.selfID,
		Participants:  append([]participant.ID(nil), p.ExistingParticipants...),
	}}
}

func (s *Syncer) broadcastControlJoin() {
	env, err := envelope.EncodeControlJoin(envelope.ControlPayload{ParticipantID: string(s.selfID)})
	if err != nil {
		return
	}
	bytes, err := envelope.Encode(env)
	if err != nil {
		return
	}
	params := transport.ParamsFor(synccontext.ControlJoin)
	for _, peer := range s.table.Participants() {
		s.tr.Send(peer, transport.BytesPayload(bytes), params)
	}
}

func (s *Syncer) handleSendPose(p PoseParams) []Event {
	if !s.limiter.CheckAndRecord() {
		return []Event{{Kind: EventRateLimited, StreamKind: synccontext.Pose, Ctx: s.ctx(s.selfID, synccontext.Pose)}}
	}

	env, err := envelope.EncodePose(p.Pose)
	if err != nil {
		return []Event{s.errorEvent(s.selfID, ErrorInvalidPayload, synccontext.Pose)}
	}
	bytes, err := envelope.Encode(env)
	if err != nil {
		return []Event{s.errorEvent(s.selfID, ErrorInvalidPayload, synccontext.Pose)}
	}

	params := transport.ParamsFor(synccontext.Pose)
	for _, ob := range s.router.RoutePose(s.selfID, p.Pose, s.table) {
		s.tr.Send(ob.To, transport.BytesPayload(bytes), params)
	}
	return nil
}

func (s *Syncer) handleSendChat(p ChatParams) []Event {
	if !s.limiter.CheckAndRecord() {
		return []Event{{Kind: EventRateLimited, StreamKind: synccontext.Chat, Ctx: s.ctx(s.selfID, synccontext.Chat)}}
	}

	env, err := envelope.EncodeChat(p.Chat)
	if err != nil {
		return []Event{s.errorEvent(s.selfID, ErrorInvalidPayload, synccontext.Chat)}
	}
	bytes, err := envelope.Encode(env)
	if err != nil {
		return []Event{s.errorEvent(s.selfID, ErrorInvalidPayload, synccontext.Chat)}
	}

	params := transport.ParamsFor(synccontext.Chat)
	for _, ob := range s.router.RouteChat(s.selfID, p.Chat, s.table) {
		s.tr.Send(ob.To, transport.BytesPayload(bytes), params)
	}
	return nil
}

func (s *Syncer) handleSendVoiceFrame(p VoiceParams) []Event {
	params := transport.ParamsFor(synccontext.Voice)
	for _, peer := range s.table.Participants() {
		if peer == s.selfID {
			continue
		}
		s.tr.Send(peer, transport.AudioPayload(p.Frame), params)
	}
	return nil
}

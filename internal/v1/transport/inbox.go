package transport

import "github.com/See2et/bakopa-vr/bloom/internal/v1/participant"

// InboxEventKind identifies the shape of one InboxEvent.
type InboxEventKind int

const (
	InboxPoseReceived InboxEventKind = iota
	InboxChatReceived
	InboxVoiceFrameReceived
	InboxPeerJoined
	InboxPeerLeft
	InboxError
)

// InboxErrorCode enumerates the reasons Drain can surface InboxError.
type InboxErrorCode int

const (
	// InvalidPayload means a Received event's bytes failed envelope
	// decoding or carried a signaling kind, which never travels over the
	// data channel.
	InvalidPayload InboxErrorCode = iota
)

// InboxEvent is the Inbox's own vocabulary for what Drain surfaces. It is
// deliberately distinct from both transport.Event and the Syncer facade's
// syncer.Event so that this package never needs to import the syncer
// package; the Syncer facade does the thin translation from InboxEvent to
// its own richer event type.
type InboxEvent struct {
	Kind  InboxEventKind
	From  participant.ID
	Bytes []byte // envelope-encoded payload for Pose/Chat
	Audio []byte // raw frame for VoiceFrameReceived
	Peer  participant.ID
	Error InboxErrorCode
}

// Inbox buffers raw transport Events pushed from a Transport's Poll and
// turns them into the InboxEvent vocabulary the Syncer facade consumes. It
// also owns the Failure dedup: once a Failure for a peer has produced a
// PeerLeft, further Failures for the same peer are silently dropped until
// that peer's dedup entry is cleared by a successful (re)join.
type Inbox struct {
	pending        []Event
	failureEmitted map[participant.ID]bool
}

// NewInbox constructs an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{failureEmitted: make(map[participant.ID]bool)}
}

// Push appends a raw transport Event (typically the result of one
// Transport.Poll call) for the next Drain to process.
func (ib *Inbox) Push(events ...Event) {
	ib.pending = append(ib.pending, events...)
}

// Drain consumes every pending transport Event and, using table to apply
// Control-channel side effects, returns the InboxEvent sequence the Syncer
// facade should emit. table is the room's participant.Table.
func (ib *Inbox) Drain(table *participant.Table, decode func(bytes []byte) (kind InboxEventKind, ok bool)) []InboxEvent {
	pending := ib.pending
	ib.pending = nil

	var out []InboxEvent
	for _, ev := range pending {
		switch {
		case ev.Received != nil:
			out = append(out, ib.drainReceived(*ev.Received, table, decode)...)
		case ev.Failure != nil:
			out = append(out, ib.drainFailure(*ev.Failure, table)...)
		}
	}
	return out
}

func (ib *Inbox) drainReceived(r Received, table *participant.Table, decode func([]byte) (InboxEventKind, bool)) []InboxEvent {
	if r.Payload.IsAudio() {
		return []InboxEvent{{Kind: InboxVoiceFrameReceived, From: r.From, Audio: r.Payload.Audio}}
	}

	kind, ok := decode(r.Payload.Bytes)
	if !ok {
		return []InboxEvent{{Kind: InboxError, From: r.From, Error: InvalidPayload}}
	}

	switch kind {
	case InboxPoseReceived:
		return []InboxEvent{{Kind: InboxPoseReceived, From: r.From, Bytes: r.Payload.Bytes}}
	case InboxChatReceived:
		return []InboxEvent{{Kind: InboxChatReceived, From: r.From, Bytes: r.Payload.Bytes}}
	case InboxPeerJoined:
		ib.ClearFailureDedup(r.From)
		events := table.ApplyJoin(r.From)
		return translateParticipantEvents(events)
	case InboxPeerLeft:
		events := table.ApplyLeave(r.From)
		return translateParticipantEvents(events)
	default:
		return []InboxEvent{{Kind: InboxError, From: r.From, Error: InvalidPayload}}
	}
}

func (ib *Inbox) drainFailure(f Failure, table *participant.Table) []InboxEvent {
	if ib.failureEmitted[f.Peer] {
		return nil
	}
	ib.failureEmitted[f.Peer] = true

	events := table.ApplyLeave(f.Peer)
	if len(events) == 0 {
		// Table had nothing to remove (peer never joined, or already
		// removed by a prior explicit leave); still synthesize the lone
		// PeerLeft so callers observe exactly one per failed peer.
		return []InboxEvent{{Kind: InboxPeerLeft, Peer: f.Peer}}
	}
	return translateParticipantEvents(events)
}

// ClearFailureDedup re-arms failure tracking for p. Drain calls this when
// an inbound Control.Join from p arrives, so that a genuine failure
// occurring after rejoin is processed again rather than silently dropped.
func (ib *Inbox) ClearFailureDedup(p participant.ID) {
	delete(ib.failureEmitted, p)
}

func translateParticipantEvents(events []participant.Event) []InboxEvent {
	out := make([]InboxEvent, 0, len(events))
	for _, e := range events {
		switch e.Kind {
		case participant.EventPeerJoined:
			out = append(out, InboxEvent{Kind: InboxPeerJoined, Peer: e.ParticipantID})
		case participant.EventPeerLeft:
			out = append(out, InboxEvent{Kind: InboxPeerLeft, Peer: e.ParticipantID})
		}
	}
	return out
}

package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/ratelimit"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/router"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/synccontext"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/transport"
)

func newSyncer(tr transport.Transport) *Syncer {
	clock := ratelimit.NewFakeClock(time.Unix(0, 0))
	limiter := ratelimit.NewSessionLimiter(clock, 20, time.Second)
	return New(participant.NewTable(), router.New(), limiter, tr)
}

func TestSyncer_Handle_JoinEmitsSelfJoinedWithExistingParticipants(t *testing.T) {
	bus := transport.NewBus()
	self := participant.NewID()
	existing := participant.NewID()
	s := newSyncer(bus.ForParticipant(self))

	events := s.Handle(JoinRequest(roommgr.NewID(), self, []participant.ID{existing}))

	require.Len(t, events, 1)
	assert.Equal(t, EventSelfJoined, events[0].Kind)
	assert.Equal(t, self, events[0].ParticipantID)
	assert.Equal(t, []participant.ID{existing}, events[0].Participants)
}

func TestSyncer_Handle_SendPoseDeliversToOtherParticipantInbox(t *testing.T) {
	bus := transport.NewBus()
	roomID := roommgr.NewID()
	a, b := participant.NewID(), participant.NewID()

	sa := newSyncer(bus.ForParticipant(a))
	sb := newSyncer(bus.ForParticipant(b))

	sb.Handle(JoinRequest(roomID, b, nil))
	sa.Handle(JoinRequest(roomID, a, []participant.ID{b}))

	pose := envelope.PoseMessage{Version: 1, TimestampMicros: 7}
	events := sa.Handle(SendPoseRequest(pose))
	assert.Empty(t, events)

	// a's Join sent Control.Join to b, so PeerJoined(a) precedes the pose.
	events = sb.PollOnly()
	require.Len(t, events, 2)
	assert.Equal(t, EventPeerJoined, events[0].Kind)
	assert.Equal(t, a, events[0].ParticipantID)
	assert.Equal(t, EventPoseReceived, events[1].Kind)
	assert.Equal(t, a, events[1].From)
	assert.Equal(t, pose, events[1].Pose)
}

func TestSyncer_Handle_SendChatDeliversToOtherParticipantInbox(t *testing.T) {
	bus := transport.NewBus()
	roomID := roommgr.NewID()
	a, b := participant.NewID(), participant.NewID()

	sa := newSyncer(bus.ForParticipant(a))
	sb := newSyncer(bus.ForParticipant(b))

	sb.Handle(JoinRequest(roomID, b, nil))
	sa.Handle(JoinRequest(roomID, a, []participant.ID{b}))

	chat := envelope.ChatMessage{Version: 1, Sender: string(a), Message: "hello"}
	sa.Handle(SendChatRequest(chat))

	events := sb.PollOnly()
	require.Len(t, events, 2)
	assert.Equal(t, EventPeerJoined, events[0].Kind)
	assert.Equal(t, a, events[0].ParticipantID)
	assert.Equal(t, EventChatReceived, events[1].Kind)
	assert.Equal(t, chat, events[1].Chat)
}

func TestSyncer_Handle_SendPoseRateLimitedAfterLimitExhausted(t *testing.T) {
	bus := transport.NewBus()
	self := participant.NewID()
	clock := ratelimit.NewFakeClock(time.Unix(0, 0))
	limiter := ratelimit.NewSessionLimiter(clock, 1, time.Second)
	s := New(participant.NewTable(), router.New(), limiter, bus.ForParticipant(self))
	s.Handle(JoinRequest(roommgr.NewID(), self, nil))

	pose := envelope.PoseMessage{Version: 1}
	events := s.Handle(SendPoseRequest(pose))
	assert.Empty(t, events)

	events = s.Handle(SendPoseRequest(pose))
	require.Len(t, events, 1)
	assert.Equal(t, EventRateLimited, events[0].Kind)
	assert.Equal(t, synccontext.Pose, events[0].StreamKind)
}

func TestSyncer_Handle_InboundFailureEmitsPeerLeft(t *testing.T) {
	bus := transport.NewBus()
	roomID := roommgr.NewID()
	self := participant.NewID()
	peer := participant.NewID()

	s := newSyncer(bus.ForParticipant(self))
	s.Handle(JoinRequest(roomID, self, []participant.ID{peer}))

	s.PushTransportEvent(transport.FailureEvent(peer))

	events := s.PollOnly()
	require.Len(t, events, 1)
	assert.Equal(t, EventPeerLeft, events[0].Kind)
	assert.Equal(t, peer, events[0].ParticipantID)
}

func TestSyncer_Handle_UndecodablePayloadEmitsError(t *testing.T) {
	bus := transport.NewBus()
	self := participant.NewID()
	s := newSyncer(bus.ForParticipant(self))
	s.Handle(JoinRequest(roommgr.NewID(), self, nil))

	from := participant.NewID()
	s.PushTransportEvent(transport.ReceivedEvent(from, transport.BytesPayload([]byte("not json"))))

	events := s.PollOnly()
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.Equal(t, ErrorInvalidPayload, events[0].Error)
}

func TestSyncer_RebindTransport_ReBroadcastsControlJoinToKnownPeers(t *testing.T) {
	bus := transport.NewBus()
	roomID := roommgr.NewID()
	a, b := participant.NewID(), participant.NewID()

	sa := newSyncer(bus.ForParticipant(a))
	sb := newSyncer(bus.ForParticipant(b))
	sb.Handle(JoinRequest(roomID, b, nil))
	sa.Handle(JoinRequest(roomID, a, []participant.ID{b}))
	sb.PollOnly() // drain the first Control.Join from a's initial Join

	newBus := transport.NewBus()
	newTr := newBus.ForParticipant(a)
	// b must share the new bus to observe the rebroadcast.
	bJoinedOnNewBus := newBus.ForParticipant(b)
	bJoinedOnNewBus.RegisterParticipant(b)

	sa.RebindTransport(newTr)

	msgs := bJoinedOnNewBus.Poll()
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Received)
	assert.Equal(t, a, msgs[0].Received.From)
}

func TestSyncer_Handle_SendVoiceFrameFansOutToOtherParticipantsAsAudio(t *testing.T) {
	bus := transport.NewBus()
	roomID := roommgr.NewID()
	a, b := participant.NewID(), participant.NewID()

	sa := newSyncer(bus.ForParticipant(a))
	sb := newSyncer(bus.ForParticipant(b))
	sb.Handle(JoinRequest(roomID, b, nil))
	sa.Handle(JoinRequest(roomID, a, []participant.ID{b}))

	frame := []byte{9, 9, 9}
	events := sa.Handle(SendVoiceFrameRequest(frame))
	assert.Empty(t, events)

	events = sb.PollOnly()
	require.Len(t, events, 2)
	assert.Equal(t, EventPeerJoined, events[0].Kind)
	assert.Equal(t, a, events[0].ParticipantID)
	assert.Equal(t, EventVoiceFrameReceived, events[1].Kind)
	assert.Equal(t, frame, events[1].Frame)
}

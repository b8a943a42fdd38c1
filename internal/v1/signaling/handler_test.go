package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// fakeWSConn is a minimal wsConnection double: it is never read from by
// the tests below (readPump is never started), only written to, so only
// WriteMessage/Close need to do anything.
type fakeWSConn struct {
	closed  bool
	written [][]byte
}

func (f *fakeWSConn) ReadMessage() (int, []byte, error) { select {} }
func (f *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}
func (f *fakeWSConn) Close() error                          { f.closed = true; return nil }
func (f *fakeWSConn) SetReadDeadline(t time.Time) error      { return nil }
func (f *fakeWSConn) SetWriteDeadline(t time.Time) error     { return nil }
func (f *fakeWSConn) SetPongHandler(h func(string) error)    {}

func newTestConn(h *Handler) (*connection, *fakeWSConn) {
	id := participant.NewID()
	fc := &fakeWSConn{}
	c := newConnection(fc, id, h)
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c, fc
}

func newTestHandler() *Handler {
	return NewHandler(roommgr.NewManager(), nil, nil)
}

func drain(c *connection) map[string]any {
	select {
	case frame := <-c.send:
		var v map[string]any
		if err := json.Unmarshal(frame, &v); err != nil {
			panic(err)
		}
		return v
	default:
		return nil
	}
}

func TestHandleCreateRoom_RepliesRoomCreatedWithValidIDs(t *testing.T) {
	h := newTestHandler()
	c, _ := newTestConn(h)

	h.handleCreateRoom(c)

	frame := drain(c)
	require.NotNil(t, frame)
	assert.Equal(t, "RoomCreated", frame["type"])
	roomID, _ := roommgr.ParseID(frame["room_id"].(string))
	assert.NotEmpty(t, roomID)
	selfID, _ := participant.ParseID(frame["self_id"].(string))
	assert.Equal(t, c.id, selfID)

	rid, joined := c.currentRoom()
	assert.True(t, joined)
	assert.Equal(t, roommgr.ID(frame["room_id"].(string)), rid)
}

func TestHandleJoinRoom_BroadcastsRoomParticipantsToBothMembers(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)
	b, _ := newTestConn(h)

	h.handleCreateRoom(a)
	created := drain(a)
	roomID := created["room_id"].(string)

	h.handleJoinRoom(b, roomID)

	aFrame := drain(a)
	bFrame := drain(b)
	require.NotNil(t, aFrame)
	require.NotNil(t, bFrame)
	assert.Equal(t, "RoomParticipants", aFrame["type"])
	assert.Equal(t, "RoomParticipants", bFrame["type"])
	assert.Equal(t, aFrame["participants"], bFrame["participants"])

	parts := aFrame["participants"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, string(a.id), parts[0])
	assert.Equal(t, string(b.id), parts[1])
}

func TestHandleJoinRoom_UnknownRoomYieldsInternalError(t *testing.T) {
	h := newTestHandler()
	c, _ := newTestConn(h)

	h.handleJoinRoom(c, roommgr.NewID().String())

	frame := drain(c)
	require.NotNil(t, frame)
	assert.Equal(t, "Error", frame["type"])
	assert.Equal(t, string(ErrorInternal), frame["code"])
}

func TestHandleJoinRoom_FullRoomYieldsRoomFull(t *testing.T) {
	h := newTestHandler()
	owner, _ := newTestConn(h)
	h.handleCreateRoom(owner)
	created := drain(owner)
	roomID := created["room_id"].(string)

	for i := 0; i < roommgr.MaxParticipants-1; i++ {
		c, _ := newTestConn(h)
		h.handleJoinRoom(c, roomID)
		drain(owner)
		drain(c)
	}

	overflow, _ := newTestConn(h)
	h.handleJoinRoom(overflow, roomID)

	frame := drain(overflow)
	require.NotNil(t, frame)
	assert.Equal(t, "Error", frame["type"])
	assert.Equal(t, string(ErrorRoomFull), frame["code"])
}

func TestOfferRouting_OnlyTargetReceivesOffer(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)
	b, _ := newTestConn(h)

	h.handleCreateRoom(a)
	created := drain(a)
	roomID := created["room_id"].(string)
	h.handleJoinRoom(b, roomID)
	drain(a)
	drain(b)

	h.handleRelay(a, string(b.id), relayOffer, "v=0 offer", "")

	bFrame := drain(b)
	require.NotNil(t, bFrame)
	assert.Equal(t, "Offer", bFrame["type"])
	assert.Equal(t, string(a.id), bFrame["from"])
	assert.Equal(t, "v=0 offer", bFrame["sdp"])

	assert.Nil(t, drain(a))
}

func TestOfferRouting_UnknownTargetYieldsParticipantNotFound(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)
	h.handleCreateRoom(a)
	drain(a)

	h.handleRelay(a, participant.NewID().String(), relayOffer, "v=0 offer", "")

	frame := drain(a)
	require.NotNil(t, frame)
	assert.Equal(t, "Error", frame["type"])
	assert.Equal(t, string(ErrorParticipantNotFound), frame["code"])
}

func TestOfferRouting_NotInRoomYieldsInvalidPayload(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)

	h.handleRelay(a, participant.NewID().String(), relayOffer, "v=0 offer", "")

	frame := drain(a)
	require.NotNil(t, frame)
	assert.Equal(t, "Error", frame["type"])
	assert.Equal(t, string(ErrorInvalidPayload), frame["code"])
}

func TestRelay_TwentyFirstRequestIsRateLimited(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)
	b, _ := newTestConn(h)
	h.handleCreateRoom(a)
	created := drain(a)
	roomID := created["room_id"].(string)
	h.handleJoinRoom(b, roomID)
	drain(a)
	drain(b)

	for i := 0; i < 20; i++ {
		h.handleRelay(a, string(b.id), relayOffer, "v=0 offer", "")
		frame := drain(b)
		require.NotNil(t, frame, "relay %d should have been delivered", i)
	}

	h.handleRelay(a, string(b.id), relayOffer, "v=0 offer", "")
	frame := drain(a)
	require.NotNil(t, frame)
	assert.Equal(t, "Error", frame["type"])
	assert.Equal(t, string(ErrorRateLimited), frame["code"])
	assert.Nil(t, drain(b))
}

func TestAbnormalClose_BroadcastsDisconnectThenParticipantsOnceOnly(t *testing.T) {
	h := newTestHandler()
	a, _ := newTestConn(h)
	b, _ := newTestConn(h)
	h.handleCreateRoom(a)
	created := drain(a)
	roomID := created["room_id"].(string)
	h.handleJoinRoom(b, roomID)
	drain(a)
	drain(b)

	h.handleAbnormalClose(a)

	disc := drain(b)
	require.NotNil(t, disc)
	assert.Equal(t, "PeerDisconnected", disc["type"])
	assert.Equal(t, string(a.id), disc["participant_id"])

	parts := drain(b)
	require.NotNil(t, parts)
	assert.Equal(t, "RoomParticipants", parts["type"])

	// Calling it again must be a no-op: dedup via sync.Once.
	h.handleAbnormalClose(a)
	assert.Nil(t, drain(b))

	_, ok := h.lookup(a.id)
	assert.False(t, ok)
}

func TestDecodeClientMessage_RejectsUnknownFields(t *testing.T) {
	_, err := decodeClientMessage([]byte(`{"type":"CreateRoom","extra":"field"}`))
	assert.Error(t, err)
}

func TestDecodeClientMessage_RejectsUnknownType(t *testing.T) {
	_, err := decodeClientMessage([]byte(`{"type":"Bogus"}`))
	assert.Error(t, err)
}

func TestDispatch_RoutesEveryInboundKind(t *testing.T) {
	h := newTestHandler()
	c, _ := newTestConn(h)

	msg, err := decodeClientMessage([]byte(`{"type":"CreateRoom"}`))
	require.NoError(t, err)
	h.dispatch(c, msg)

	frame := drain(c)
	require.NotNil(t, frame)
	assert.Equal(t, "RoomCreated", frame["type"])
}

func TestKick_ClosesConnectionAndReportsWhetherPresent(t *testing.T) {
	h := newTestHandler()
	c, fc := newTestConn(h)

	assert.True(t, h.Kick(c.id))
	assert.True(t, fc.closed)

	assert.False(t, h.Kick(participant.NewID()))
}

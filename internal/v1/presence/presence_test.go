package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/bus"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

func newTestMirror(t *testing.T) (*Mirror, *bus.Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)

	return New(svc), svc, mr
}

func TestMirrorOnPeerJoinedPublishes(t *testing.T) {
	mirror, svc, mr := newTestMirror(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	roomID := roommgr.ID("room-1")
	pID := participant.ID("peer-1")

	sub := svc.Client().Subscribe(context.Background(), "video:room:"+string(roomID))
	defer func() { _ = sub.Close() }()
	time.Sleep(50 * time.Millisecond)

	mirror.OnPeerJoined(roomID, pID)

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var envelope bus.PubSubPayload
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	assert.Equal(t, "peer_joined", envelope.Event)
	assert.Equal(t, string(pID), envelope.SenderID)
}

func TestMirrorOnPeerLeftPublishes(t *testing.T) {
	mirror, svc, mr := newTestMirror(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	roomID := roommgr.ID("room-2")
	pID := participant.ID("peer-2")

	sub := svc.Client().Subscribe(context.Background(), "video:room:"+string(roomID))
	defer func() { _ = sub.Close() }()
	time.Sleep(50 * time.Millisecond)

	mirror.OnPeerLeft(roomID, pID)

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var envelope bus.PubSubPayload
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	assert.Equal(t, "peer_left", envelope.Event)
}

func TestMirrorNilServiceIsNoop(t *testing.T) {
	mirror := New(nil)
	assert.NotPanics(t, func() {
		mirror.OnPeerJoined(roommgr.ID("room-3"), participant.ID("peer-3"))
		mirror.OnPeerLeft(roommgr.ID("room-3"), participant.ID("peer-3"))
	})
}

func TestMirrorDisconnectedRedisDoesNotPanic(t *testing.T) {
	mirror, svc, mr := newTestMirror(t)
	defer func() { _ = svc.Close() }()
	mr.Close()

	assert.NotPanics(t, func() {
		mirror.OnPeerJoined(roommgr.ID("room-4"), participant.ID("peer-4"))
	})
}

package synccontext

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

func TestStreamKind_WireValuesMatchEnvelopeTags(t *testing.T) {
	assert.Equal(t, "pose", string(Pose))
	assert.Equal(t, "chat", string(Chat))
	assert.Equal(t, "voice", string(Voice))
	assert.Equal(t, "control.join", string(ControlJoin))
	assert.Equal(t, "control.leave", string(ControlLeave))
	assert.Equal(t, "signaling.offer", string(SignalingOffer))
	assert.Equal(t, "signaling.answer", string(SignalingAnswer))
	assert.Equal(t, "signaling.ice", string(SignalingIce))
}

func TestTracingContext_CarriesRoomParticipantAndStreamKind(t *testing.T) {
	room := roommgr.NewID()
	p := participant.NewID()

	ctx := TracingContext{RoomID: room, ParticipantID: p, StreamKind: Pose}

	assert.Equal(t, room, ctx.RoomID)
	assert.Equal(t, p, ctx.ParticipantID)
	assert.Equal(t, Pose, ctx.StreamKind)
}

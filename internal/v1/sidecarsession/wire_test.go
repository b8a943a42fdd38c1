package sidecarsession

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
)

func TestDecodeClientFrame_Join(t *testing.T) {
	raw := []byte(`{"type":"Join","room_id":"abc","bloom_ws_url":"ws://localhost:8080/ws"}`)

	f, err := decodeClientFrame(raw)

	require.NoError(t, err)
	assert.Equal(t, "Join", f.Type)
	require.NotNil(t, f.RoomID)
	assert.Equal(t, "abc", *f.RoomID)
	assert.Equal(t, "ws://localhost:8080/ws", f.BloomWSURL)
}

func TestDecodeClientFrame_JoinWithNilRoomIDMeansCreate(t *testing.T) {
	raw := []byte(`{"type":"Join","room_id":null,"bloom_ws_url":"ws://localhost:8080/ws"}`)

	f, err := decodeClientFrame(raw)

	require.NoError(t, err)
	assert.Nil(t, f.RoomID)
}

func TestDecodeClientFrame_MalformedJSON(t *testing.T) {
	_, err := decodeClientFrame([]byte(`{not json`))
	assert.ErrorIs(t, err, errMalformedFrame)
}

func TestDecodePoseFrame_RequiresHead(t *testing.T) {
	f := &clientFrame{Type: "SendPose"}

	_, ok := decodePoseFrame(f)

	assert.False(t, ok)
}

func TestDecodePoseFrame_RoundTripsThroughWireTransform(t *testing.T) {
	f := &clientFrame{
		Type:      "SendPose",
		Timestamp: 12345,
		Head: &wireTransform{
			Position: wireVec3{X: 1, Y: 2, Z: 3},
			Rotation: wireVec4{X: 0, Y: 0, Z: 0, W: 1},
		},
		HandL: &wireTransform{Position: wireVec3{X: 4, Y: 5, Z: 6}, Rotation: wireVec4{W: 1}},
	}

	msg, ok := decodePoseFrame(f)

	require.True(t, ok)
	assert.EqualValues(t, 1, msg.Version)
	assert.EqualValues(t, 12345, msg.TimestampMicros)
	assert.Equal(t, [3]float32{1, 2, 3}, msg.Head.Position)
	require.NotNil(t, msg.HandL)
	assert.Equal(t, [3]float32{4, 5, 6}, msg.HandL.Position)
	assert.Nil(t, msg.HandR)
}

func TestSelfJoinedFrame_ContainsParticipantsList(t *testing.T) {
	frame := selfJoinedFrame("room-1", "self-1", []string{"self-1", "peer-1"})

	var v map[string]any
	require.NoError(t, json.Unmarshal(frame, &v))
	assert.Equal(t, "SelfJoined", v["type"])
	assert.Equal(t, "room-1", v["room_id"])
	assert.Equal(t, "self-1", v["participant_id"])
	assert.ElementsMatch(t, []any{"self-1", "peer-1"}, v["participants"])
}

func TestPoseReceivedFrame_OmitsHandsWhenAbsent(t *testing.T) {
	pose := envelope.PoseMessage{Version: 1, TimestampMicros: 99, Head: envelope.PoseTransform{Rotation: [4]float32{0, 0, 0, 1}}}

	frame := poseReceivedFrame("peer-1", pose)

	var v map[string]any
	require.NoError(t, json.Unmarshal(frame, &v))
	assert.Equal(t, "PoseReceived", v["type"])
	assert.Equal(t, "peer-1", v["from"])
	body := v["pose"].(map[string]any)
	assert.NotContains(t, body, "hand_l")
	assert.NotContains(t, body, "hand_r")
}

func TestRateLimitedFrame_CarriesStreamKind(t *testing.T) {
	frame := rateLimitedFrame("pose")

	var v map[string]any
	require.NoError(t, json.Unmarshal(frame, &v))
	assert.Equal(t, "RateLimited", v["type"])
	assert.Equal(t, "pose", v["stream_kind"])
}

func TestErrorFrame_CarriesKindAndMessage(t *testing.T) {
	frame := errorFrame(errorNotJoined, "nope")

	var v map[string]any
	require.NoError(t, json.Unmarshal(frame, &v))
	assert.Equal(t, "Error", v["type"])
	assert.Equal(t, "NotJoined", v["kind"])
	assert.Equal(t, "nope", v["message"])
}

package sidecarsession

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
)

// clientFrame is the wire shape shared by every local-client->Sidecar
// message. Only the fields relevant to Type are populated by the sender.
type clientFrame struct {
	Type       string          `json:"type"`
	RoomID     *string         `json:"room_id"`
	BloomWSURL string          `json:"bloom_ws_url"`
	Head       *wireTransform  `json:"head"`
	HandL      *wireTransform  `json:"hand_l"`
	HandR      *wireTransform  `json:"hand_r"`
	Timestamp  uint64          `json:"timestamp_micros"`
}

// wireTransform is the {x,y,z[,w]} object notation the Sidecar boundary
// uses for pose data, distinct from the array notation the internal
// envelope.PoseTransform uses on the data channel; toEnvelope and
// fromEnvelopeTransform convert between the two.
type wireTransform struct {
	Position wireVec3 `json:"position"`
	Rotation wireVec4 `json:"rotation"`
}

type wireVec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type wireVec4 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

func (t wireTransform) toEnvelope() envelope.PoseTransform {
	return envelope.PoseTransform{
		Position: [3]float32{t.Position.X, t.Position.Y, t.Position.Z},
		Rotation: [4]float32{t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W},
	}
}

func fromEnvelopeTransform(t envelope.PoseTransform) wireTransform {
	return wireTransform{
		Position: wireVec3{X: t.Position[0], Y: t.Position[1], Z: t.Position[2]},
		Rotation: wireVec4{X: t.Rotation[0], Y: t.Rotation[1], Z: t.Rotation[2], W: t.Rotation[3]},
	}
}

var errMalformedFrame = errors.New("sidecarsession: malformed frame")

func decodeClientFrame(data []byte) (*clientFrame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var f clientFrame
	if err := dec.Decode(&f); err != nil {
		return nil, errMalformedFrame
	}
	return &f, nil
}

func decodePoseFrame(f *clientFrame) (envelope.PoseMessage, bool) {
	if f.Head == nil {
		return envelope.PoseMessage{}, false
	}
	msg := envelope.PoseMessage{Version: 1, TimestampMicros: f.Timestamp, Head: f.Head.toEnvelope()}
	if f.HandL != nil {
		hl := f.HandL.toEnvelope()
		msg.HandL = &hl
	}
	if f.HandR != nil {
		hr := f.HandR.toEnvelope()
		msg.HandR = &hr
	}
	return msg, true
}

// outbound wire frame builders, mirroring app.rs's pose_received_payload /
// rate_limited_payload / SelfJoined / Error literal JSON construction.

func selfJoinedFrame(roomID, participantID string, participants []string) []byte {
	return mustMarshal(map[string]any{
		"type":           "SelfJoined",
		"room_id":        roomID,
		"participant_id": participantID,
		"participants":   participants,
	})
}

func poseReceivedFrame(from string, pose envelope.PoseMessage) []byte {
	body := map[string]any{
		"type": "PoseReceived",
		"from": from,
		"pose": map[string]any{
			"version":          pose.Version,
			"timestamp_micros": pose.TimestampMicros,
			"head":             fromEnvelopeTransform(pose.Head),
		},
	}
	poseBody := body["pose"].(map[string]any)
	if pose.HandL != nil {
		poseBody["hand_l"] = fromEnvelopeTransform(*pose.HandL)
	}
	if pose.HandR != nil {
		poseBody["hand_r"] = fromEnvelopeTransform(*pose.HandR)
	}
	return mustMarshal(body)
}

func rateLimitedFrame(streamKind string) []byte {
	return mustMarshal(map[string]any{"type": "RateLimited", "stream_kind": streamKind})
}

// errorKind enumerates the wire Error frame's kind field.
type errorKind string

const (
	errorNotJoined      errorKind = "NotJoined"
	errorInvalidPayload errorKind = "InvalidPayload"
	errorSignalingError errorKind = "SignalingError"
	errorTransportError errorKind = "TransportError"
)

func errorFrame(kind errorKind, message string) []byte {
	return mustMarshal(map[string]any{"type": "Error", "kind": string(kind), "message": message})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Package signaling implements the Signaling Protocol Handler: the /ws
// endpoint's per-connection state machine driving CreateRoom, JoinRoom,
// LeaveRoom and Offer/Answer/IceCandidate relay, backed by the Room
// Manager.
package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrorCode enumerates the Error frame's code field.
type ErrorCode string

const (
	ErrorRoomFull            ErrorCode = "RoomFull"
	ErrorRoomNotFound        ErrorCode = "RoomNotFound"
	ErrorInvalidPayload      ErrorCode = "InvalidPayload"
	ErrorParticipantNotFound ErrorCode = "ParticipantNotFound"
	ErrorRateLimited         ErrorCode = "RateLimited"
	ErrorInternal            ErrorCode = "Internal"
)

// clientFrame is the wire shape shared by every Client->Server message;
// fields unused by a given type are left zero. Unknown top-level fields
// are rejected by the decoder (json.Decoder.DisallowUnknownFields), per
// the protocol's "unknown fields are rejected" rule.
type clientFrame struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	To        string `json:"to"`
	SDP       string `json:"sdp"`
	Candidate string `json:"candidate"`
}

// inboundKind tags a decoded Client->Server frame.
type inboundKind int

const (
	inboundCreateRoom inboundKind = iota
	inboundJoinRoom
	inboundLeaveRoom
	inboundOffer
	inboundAnswer
	inboundIceCandidate
)

type inboundMessage struct {
	Kind      inboundKind
	RoomID    string
	To        string
	SDP       string
	Candidate string
}

// decodeClientMessage parses one text frame into the typed inbound
// vocabulary. Non-JSON-object input, an unknown type tag, or an unknown
// field anywhere in the frame all yield ErrorInvalidPayload.
func decodeClientMessage(data []byte) (*inboundMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f clientFrame
	if err := dec.Decode(&f); err != nil {
		return nil, errInvalidPayload
	}

	switch f.Type {
	case "CreateRoom":
		return &inboundMessage{Kind: inboundCreateRoom}, nil
	case "JoinRoom":
		if f.RoomID == "" {
			return nil, errInvalidPayload
		}
		return &inboundMessage{Kind: inboundJoinRoom, RoomID: f.RoomID}, nil
	case "LeaveRoom":
		return &inboundMessage{Kind: inboundLeaveRoom}, nil
	case "Offer":
		if f.To == "" || f.SDP == "" {
			return nil, errInvalidPayload
		}
		return &inboundMessage{Kind: inboundOffer, To: f.To, SDP: f.SDP}, nil
	case "Answer":
		if f.To == "" || f.SDP == "" {
			return nil, errInvalidPayload
		}
		return &inboundMessage{Kind: inboundAnswer, To: f.To, SDP: f.SDP}, nil
	case "IceCandidate":
		if f.To == "" || f.Candidate == "" {
			return nil, errInvalidPayload
		}
		return &inboundMessage{Kind: inboundIceCandidate, To: f.To, Candidate: f.Candidate}, nil
	default:
		return nil, errInvalidPayload
	}
}

var errInvalidPayload = errors.New("signaling: invalid payload")

// roomCreated builds the RoomCreated server frame.
func roomCreated(roomID, selfID string) []byte {
	return mustMarshal(map[string]any{"type": "RoomCreated", "room_id": roomID, "self_id": selfID})
}

// roomParticipants builds the RoomParticipants server frame.
func roomParticipants(roomID string, participants []string) []byte {
	return mustMarshal(map[string]any{"type": "RoomParticipants", "room_id": roomID, "participants": participants})
}

// peerDisconnected builds the PeerDisconnected server frame.
func peerDisconnected(participantID string) []byte {
	return mustMarshal(map[string]any{"type": "PeerDisconnected", "participant_id": participantID})
}

// offerFrame builds an outbound Offer server frame.
func offerFrame(from, sdp string) []byte {
	return mustMarshal(map[string]any{"type": "Offer", "from": from, "sdp": sdp})
}

// answerFrame builds an outbound Answer server frame.
func answerFrame(from, sdp string) []byte {
	return mustMarshal(map[string]any{"type": "Answer", "from": from, "sdp": sdp})
}

// iceCandidateFrame builds an outbound IceCandidate server frame.
func iceCandidateFrame(from, candidate string) []byte {
	return mustMarshal(map[string]any{"type": "IceCandidate", "from": from, "candidate": candidate})
}

// errorFrame builds an Error server frame.
func errorFrame(code ErrorCode, message string) []byte {
	return mustMarshal(map[string]any{"type": "Error", "code": string(code), "message": message})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every call site above passes a literal map of strings/[]string;
		// json.Marshal cannot fail on that shape.
		panic(err)
	}
	return b
}

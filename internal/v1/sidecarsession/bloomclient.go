package sidecarsession

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// joinDeadline bounds how long joinViaBloomSession waits for the upstream
// Signaling Server's RoomCreated or RoomParticipants reply,
// mirroring the original sidecar's 500ms read-loop deadline.
const joinDeadline = 500 * time.Millisecond

// bloomSession is the upstream /ws connection a Sidecar Session holds open
// for the lifetime of its local client connection, used only to send the
// final LeaveRoom notification on disconnect.
type bloomSession struct {
	conn *websocket.Conn
}

func (b *bloomSession) leaveRoom() {
	if b == nil || b.conn == nil {
		return
	}
	_ = b.conn.WriteJSON(map[string]string{"type": "LeaveRoom"})
}

func (b *bloomSession) close() {
	if b == nil || b.conn == nil {
		return
	}
	_ = b.conn.Close()
}

// joinViaBloomSession dials bloomWSURL (the Signaling Server's /ws
// endpoint, as supplied in the client's Join frame) and performs either a
// JoinRoom (roomID != nil) or a CreateRoom (roomID == nil) handshake,
// returning the resolved room id, this session's own participant id, and
// the room's current participant list, ported from the original sidecar's
// join_via_bloom_session.
func joinViaBloomSession(ctx context.Context, bloomWSURL string, roomID *string) (resolvedRoomID, selfID string, participants []string, session *bloomSession, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: joinDeadline}
	conn, _, err := dialer.DialContext(ctx, bloomWSURL, nil)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("sidecarsession: dial bloom ws: %w", err)
	}

	deadline := time.Now().Add(joinDeadline)
	conn.SetReadDeadline(deadline)

	if roomID != nil {
		if err := conn.WriteJSON(map[string]string{"type": "JoinRoom", "room_id": *roomID}); err != nil {
			conn.Close()
			return "", "", nil, nil, fmt.Errorf("sidecarsession: send JoinRoom: %w", err)
		}

		// The Signaling Protocol Handler never assigns a joiner an explicit
		// "you are X" frame: §4.5's JoinRoom broadcasts RoomParticipants to
		// every member, including the joiner, and the Room Manager always
		// appends a new member to the end of the list (§4.4), so the
		// joiner's own id is positionally the last element.
		var roomParticipants []string
		for time.Now().Before(deadline) {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				break
			}
			if frame["type"] == "RoomParticipants" {
				roomParticipants = toStringSlice(frame["participants"])
				break
			}
		}

		var self string
		if len(roomParticipants) > 0 {
			self = roomParticipants[len(roomParticipants)-1]
		}
		if self == "" {
			conn.Close()
			return "", "", nil, nil, fmt.Errorf("sidecarsession: join room %s: no self id observed before deadline", *roomID)
		}
		conn.SetReadDeadline(time.Time{})
		return *roomID, self, roomParticipants, &bloomSession{conn: conn}, nil
	}

	if err := conn.WriteJSON(map[string]string{"type": "CreateRoom"}); err != nil {
		conn.Close()
		return "", "", nil, nil, fmt.Errorf("sidecarsession: send CreateRoom: %w", err)
	}

	for time.Now().Before(deadline) {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		if frame["type"] == "RoomCreated" {
			rid, _ := frame["room_id"].(string)
			self, _ := frame["self_id"].(string)
			if rid == "" || self == "" {
				break
			}
			conn.SetReadDeadline(time.Time{})
			return rid, self, []string{self}, &bloomSession{conn: conn}, nil
		}
	}

	conn.Close()
	return "", "", nil, nil, fmt.Errorf("sidecarsession: create room: no RoomCreated observed before deadline")
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

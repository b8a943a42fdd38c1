package envelope

// ControlPayload is the body shared by both control.join and control.leave
// envelopes; which one applies is carried by the envelope's Kind, not by a
// field inside the body.
type ControlPayload struct {
	ParticipantID  string  `json:"participantId"`
	ReconnectToken *string `json:"reconnectToken,omitempty"`
	Reason         *string `json:"reason,omitempty"`
}

// ControlMessage pairs a decoded payload with the join/leave distinction.
type ControlMessage struct {
	Kind    Kind
	Payload ControlPayload
}

// DecodeControl validates and extracts the body of a control.join or
// control.leave envelope.
func DecodeControl(e *Envelope) (*ControlMessage, error) {
	if e.Kind != KindControlJoin && e.Kind != KindControlLeave {
		return nil, errSchema("control", reasonKindMismatch)
	}

	var probe map[string]any
	if err := decodeBody(e.Body, false, &probe); err != nil || probe == nil {
		return nil, errSchema("control", reasonBodyNotObject)
	}

	var payload ControlPayload
	if err := decodeBody(e.Body, false, &payload); err != nil {
		return nil, errSchema("control", reasonUnsupportedKind)
	}
	if payload.ParticipantID == "" {
		return nil, errSchema("control", reasonMissingType)
	}

	return &ControlMessage{Kind: e.Kind, Payload: payload}, nil
}

// EncodeControlJoin wraps a join ControlPayload into an Envelope.
func EncodeControlJoin(payload ControlPayload) (*Envelope, error) {
	return wrap(KindControlJoin, payload)
}

// EncodeControlLeave wraps a leave ControlPayload into an Envelope.
func EncodeControlLeave(payload ControlPayload) (*Envelope, error) {
	return wrap(KindControlLeave, payload)
}

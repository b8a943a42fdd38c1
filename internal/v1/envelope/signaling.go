package envelope

// MaxCandidateLen is the maximum length of an ICE candidate string.
const MaxCandidateLen = 1024

// SignalingOffer is the body of a signaling.offer envelope.
type SignalingOffer struct {
	Version       int    `json:"version"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	AuthToken     string `json:"authToken"`
	IcePolicy     string `json:"icePolicy"`
	SDP           string `json:"sdp"`
}

func (o SignalingOffer) validate() error {
	if o.Version != 1 {
		return errUnsupportedVersion(o.Version)
	}
	if o.RoomID == "" {
		return errSchema("signaling", reasonMissingRoomID)
	}
	if o.AuthToken == "" {
		return errSchema("signaling", reasonMissingAuthToken)
	}
	if o.SDP == "" {
		return errSchema("signaling", reasonMissingSDP)
	}
	if o.IcePolicy == "" {
		return errSchema("signaling", reasonMissingIcePolicy)
	}
	return nil
}

// SignalingAnswer is the body of a signaling.answer envelope.
type SignalingAnswer struct {
	Version       int    `json:"version"`
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	AuthToken     string `json:"authToken"`
	SDP           string `json:"sdp"`
}

func (a SignalingAnswer) validate() error {
	if a.Version != 1 {
		return errUnsupportedVersion(a.Version)
	}
	if a.RoomID == "" {
		return errSchema("signaling", reasonMissingRoomID)
	}
	if a.AuthToken == "" {
		return errSchema("signaling", reasonMissingAuthToken)
	}
	if a.SDP == "" {
		return errSchema("signaling", reasonMissingSDP)
	}
	return nil
}

// SignalingIce is the body of a signaling.ice envelope.
type SignalingIce struct {
	Version       int     `json:"version"`
	RoomID        string  `json:"roomId"`
	ParticipantID string  `json:"participantId"`
	AuthToken     string  `json:"authToken"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMlineIndex,omitempty"`
}

func (i SignalingIce) validate() error {
	if i.Version != 1 {
		return errUnsupportedVersion(i.Version)
	}
	if i.RoomID == "" {
		return errSchema("signaling", reasonMissingRoomID)
	}
	if i.AuthToken == "" {
		return errSchema("signaling", reasonMissingAuthToken)
	}
	if i.Candidate == "" || len(i.Candidate) > MaxCandidateLen {
		return errSchema("signaling", reasonInvalidCandidate)
	}
	return nil
}

// DecodeSignalingOffer validates and extracts the body of a signaling.offer
// envelope. Unlike Pose/Chat, signaling bodies reject unknown fields.
func DecodeSignalingOffer(e *Envelope) (*SignalingOffer, error) {
	if e.Kind != KindSignalingOffer {
		return nil, errSchema("signaling", reasonKindMismatch)
	}
	var msg SignalingOffer
	if err := decodeBody(e.Body, true, &msg); err != nil {
		return nil, errSchema("signaling", reasonInvalidOffer)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeSignalingAnswer validates and extracts the body of a
// signaling.answer envelope.
func DecodeSignalingAnswer(e *Envelope) (*SignalingAnswer, error) {
	if e.Kind != KindSignalingAnswer {
		return nil, errSchema("signaling", reasonKindMismatch)
	}
	var msg SignalingAnswer
	if err := decodeBody(e.Body, true, &msg); err != nil {
		return nil, errSchema("signaling", reasonInvalidAnswer)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeSignalingIce validates and extracts the body of a signaling.ice
// envelope.
func DecodeSignalingIce(e *Envelope) (*SignalingIce, error) {
	if e.Kind != KindSignalingIce {
		return nil, errSchema("signaling", reasonKindMismatch)
	}
	var msg SignalingIce
	if err := decodeBody(e.Body, true, &msg); err != nil {
		return nil, errSchema("signaling", reasonInvalidIce)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeSignalingOffer wraps a SignalingOffer into an Envelope.
func EncodeSignalingOffer(msg SignalingOffer) (*Envelope, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return wrap(KindSignalingOffer, msg)
}

// EncodeSignalingAnswer wraps a SignalingAnswer into an Envelope.
func EncodeSignalingAnswer(msg SignalingAnswer) (*Envelope, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return wrap(KindSignalingAnswer, msg)
}

// EncodeSignalingIce wraps a SignalingIce into an Envelope.
func EncodeSignalingIce(msg SignalingIce) (*Envelope, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return wrap(KindSignalingIce, msg)
}

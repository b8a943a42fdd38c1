package envelope

import "math"

// PoseTransform is a position + quaternion snapshot for a head or hand.
type PoseTransform struct {
	Position [3]float32 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

func (t PoseTransform) finite() bool {
	for _, v := range t.Position {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	for _, v := range t.Rotation {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// PoseMessage is the body of a `pose` envelope.
type PoseMessage struct {
	Version         int            `json:"version"`
	TimestampMicros uint64         `json:"timestampMicros"`
	Head            PoseTransform  `json:"head"`
	HandL           *PoseTransform `json:"handL,omitempty"`
	HandR           *PoseTransform `json:"handR,omitempty"`
}

// DecodePose validates and extracts the Pose body of an already
// wrapper-validated Envelope. Unknown body fields are accepted for
// forward compatibility.
func DecodePose(e *Envelope) (*PoseMessage, error) {
	if e.Kind != KindPose {
		return nil, errSchema("pose", reasonKindMismatch)
	}

	var probe map[string]any
	if err := decodeBody(e.Body, false, &probe); err != nil || probe == nil {
		return nil, errSchema("pose", reasonBodyNotObject)
	}
	if _, ok := probe["head"]; !ok {
		return nil, errSchema("pose", reasonMissingHead)
	}

	var msg PoseMessage
	if err := decodeBody(e.Body, false, &msg); err != nil {
		return nil, errSchema("pose", reasonInvalidPose)
	}

	if msg.Version != 1 {
		return nil, errUnsupportedVersion(msg.Version)
	}
	if !msg.Head.finite() {
		return nil, errSchema("pose", reasonInvalidPose)
	}
	if msg.HandL != nil && !msg.HandL.finite() {
		return nil, errSchema("pose", reasonInvalidPose)
	}
	if msg.HandR != nil && !msg.HandR.finite() {
		return nil, errSchema("pose", reasonInvalidPose)
	}

	return &msg, nil
}

// EncodePose wraps a PoseMessage into an Envelope.
func EncodePose(msg PoseMessage) (*Envelope, error) {
	if msg.Version != 1 {
		return nil, errUnsupportedVersion(msg.Version)
	}
	return wrap(KindPose, msg)
}

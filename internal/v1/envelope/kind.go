// Package envelope implements the versioned tagged-union wire format shared
// by the data-channel transport and the signaling WebSocket: a small JSON
// wrapper (`{"v":1,"kind":"...","body":{...}}`) around one of a fixed set of
// typed messages.
package envelope

// Kind tags the body of an Envelope.
type Kind string

const (
	KindPose            Kind = "pose"
	KindChat            Kind = "chat"
	KindControlJoin     Kind = "control.join"
	KindControlLeave    Kind = "control.leave"
	KindSignalingOffer  Kind = "signaling.offer"
	KindSignalingAnswer Kind = "signaling.answer"
	KindSignalingIce    Kind = "signaling.ice"
)

func (k Kind) valid() bool {
	switch k {
	case KindPose, KindChat, KindControlJoin, KindControlLeave,
		KindSignalingOffer, KindSignalingAnswer, KindSignalingIce:
		return true
	default:
		return false
	}
}

// IsSignaling reports whether the kind belongs to the signaling family.
// Signaling messages have no place arriving over a data channel; the Inbox
// treats one as InvalidPayload rather than handling it.
func (k Kind) IsSignaling() bool {
	switch k {
	case KindSignalingOffer, KindSignalingAnswer, KindSignalingIce:
		return true
	default:
		return false
	}
}

// Package router computes the fan-out destinations for one sender's Pose
// or Chat message: every other participant currently in the room, never
// the sender itself.
package router

import (
	"github.com/See2et/bakopa-vr/bloom/internal/v1/envelope"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/synccontext"
)

// OutboundKind tags which payload variant an Outbound carries.
type OutboundKind int

const (
	OutboundPose OutboundKind = iota
	OutboundChat
)

// Outbound is one piece of routed work: deliver payload to `To` over the
// stream tagged StreamKind.
type Outbound struct {
	To         participant.ID
	StreamKind synccontext.StreamKind
	Kind       OutboundKind
	Pose       envelope.PoseMessage
	Chat       envelope.ChatMessage
}

// Router computes fan-out destinations. It holds no state of its own; the
// participant.Table passed to each call is the single source of truth for
// room membership.
type Router struct{}

// New constructs a Router.
func New() *Router {
	return &Router{}
}

// RoutePose returns one Outbound per participant other than from.
func (r *Router) RoutePose(from participant.ID, pose envelope.PoseMessage, table *participant.Table) []Outbound {
	var out []Outbound
	for _, p := range table.Participants() {
		if p == from {
			continue
		}
		out = append(out, Outbound{To: p, StreamKind: synccontext.Pose, Kind: OutboundPose, Pose: pose})
	}
	return out
}

// RouteChat returns one Outbound per participant other than from.
func (r *Router) RouteChat(from participant.ID, chat envelope.ChatMessage, table *participant.Table) []Outbound {
	var out []Outbound
	for _, p := range table.Participants() {
		if p == from {
			continue
		}
		out = append(out, Outbound{To: p, StreamKind: synccontext.Chat, Kind: OutboundChat, Chat: chat})
	}
	return out
}

package transport

import (
	"sync"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
)

type busMessage struct {
	to      participant.ID
	from    participant.ID
	payload Payload
}

// Bus is a room-scoped, in-process stand-in for the real WebRTC data
// channel / audio track stack: every participant in a room shares one Bus,
// and each gets its own BusTransport view over it. It exists purely so the
// Syncer facade and its callers can be driven end-to-end in tests and in a
// single-process deployment without a real media stack.
type Bus struct {
	mu           sync.Mutex
	participants map[participant.ID]bool
	messages     []busMessage
}

// NewBus constructs an empty, room-scoped Bus.
func NewBus() *Bus {
	return &Bus{participants: make(map[participant.ID]bool)}
}

// ForParticipant returns the BusTransport view of this Bus for p. The
// returned Transport is not yet registered; callers must invoke
// RegisterParticipant before any Send takes effect.
func (b *Bus) ForParticipant(p participant.ID) *BusTransport {
	return &BusTransport{me: p, bus: b}
}

func (b *Bus) register(p participant.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.participants[p] = true
}

func (b *Bus) enqueue(to, from participant.ID, payload Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.participants[to] {
		return
	}
	b.messages = append(b.messages, busMessage{to: to, from: from, payload: payload})
}

func (b *Bus) poll(me participant.ID) []busMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var mine []busMessage
	remaining := b.messages[:0:0]
	for _, m := range b.messages {
		if m.to == me {
			mine = append(mine, m)
		} else {
			remaining = append(remaining, m)
		}
	}
	b.messages = remaining
	return mine
}

// BusTransport is one participant's view of a shared Bus. It implements
// Transport.
type BusTransport struct {
	me         participant.ID
	bus        *Bus
	registered bool
	failures   []participant.ID
	failMu     sync.Mutex
}

var _ Transport = (*BusTransport)(nil)

// RegisterParticipant marks me as registered on the underlying Bus. Sends
// to me are dropped by the Bus until this has been called.
func (t *BusTransport) RegisterParticipant(p participant.ID) {
	t.me = p
	t.registered = true
	t.bus.register(p)
}

// Send enqueues payload for delivery to `to`. params is accepted for
// interface conformance; the in-process Bus delivers every message
// reliably and in order regardless of the requested semantics.
func (t *BusTransport) Send(to participant.ID, payload Payload, params SendParams) {
	if !t.registered {
		return
	}
	t.bus.enqueue(to, t.me, payload)
}

// Poll drains messages addressed to this transport's participant, plus any
// injected synthetic failures, and returns them as transport Events.
func (t *BusTransport) Poll() []Event {
	var events []Event

	t.failMu.Lock()
	pending := t.failures
	t.failures = nil
	t.failMu.Unlock()
	for _, peer := range pending {
		events = append(events, FailureEvent(peer))
	}

	for _, m := range t.bus.poll(t.me) {
		events = append(events, ReceivedEvent(m.from, m.payload))
	}
	return events
}

// InjectFailure is a test hook: it arranges for the next Poll to surface a
// synthetic Failure event for peer, simulating an ICE/DTLS failure on the
// real stack.
func (t *BusTransport) InjectFailure(peer participant.ID) {
	t.failMu.Lock()
	defer t.failMu.Unlock()
	t.failures = append(t.failures, peer)
}

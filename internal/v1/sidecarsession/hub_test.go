package sidecarsession

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

func TestBusHub_BusForIsSharedAcrossCallsForSameRoom(t *testing.T) {
	hub := newBusHub()
	room := roommgr.NewID()

	first := hub.busFor(room)
	second := hub.busFor(room)

	assert.Same(t, first, second)
}

func TestBusHub_BusForIsDistinctAcrossRooms(t *testing.T) {
	hub := newBusHub()

	a := hub.busFor(roommgr.NewID())
	b := hub.busFor(roommgr.NewID())

	assert.NotSame(t, a, b)
}

package sidecarsession

import (
	"sync"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/transport"
)

// busHub lends every local Sidecar Session joining the same room a shared
// in-process transport.Bus, mirroring the original sidecar's SyncerHub /
// bus_for_room: two VR clients on this same machine, in the same room,
// exchange Pose/Chat traffic over one Bus instead of each getting an
// isolated one that can never see the other.
type busHub struct {
	mu    sync.Mutex
	buses map[roommgr.ID]*transport.Bus
}

func newBusHub() *busHub {
	return &busHub{buses: make(map[roommgr.ID]*transport.Bus)}
}

// busFor returns the shared Bus for roomID, creating it on first use.
func (h *busHub) busFor(roomID roommgr.ID) *transport.Bus {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buses[roomID]
	if !ok {
		b = transport.NewBus()
		h.buses[roomID] = b
	}
	return b
}

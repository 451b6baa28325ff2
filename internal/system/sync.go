package system

import (
	"sort"

	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/syncrecv"
)

// SyncMapping assigns the sync devices a scan system keys its encoders
// against: a required Main device plus up to two optional auxiliary devices
// (§4.9).
type SyncMapping struct {
	Main uint32
	Aux1 uint32
	Aux2 uint32
}

// SetSyncReceiver wires the sync-device receiver this system validates
// SetSyncMapping's serials against.
func (sys *System) SetSyncReceiver(r *syncrecv.Receiver) {
	sys.mu.Lock()
	sys.syncRecv = r
	sys.mu.Unlock()
}

// SetSyncMapping assigns main/aux1/aux2 sync-device serials, validating that
// serials are nonzero and mutually distinct, aux2 requires aux1, and every
// named serial is currently live on the sync receiver (§4.9).
func (sys *System) SetSyncMapping(main, aux1, aux2 uint32) error {
	if main == 0 {
		return scanerr.Wrap(scanerr.InvalidArgument, "main sync serial must be nonzero")
	}
	if aux2 != 0 && aux1 == 0 {
		return scanerr.Wrap(scanerr.InvalidArgument, "aux2 requires aux1")
	}
	if aux1 != 0 && aux1 == main {
		return scanerr.Wrap(scanerr.InvalidArgument, "aux1 must differ from main")
	}
	if aux2 != 0 && (aux2 == main || aux2 == aux1) {
		return scanerr.Wrap(scanerr.InvalidArgument, "aux2 must differ from main and aux1")
	}

	sys.mu.Lock()
	recv := sys.syncRecv
	sys.mu.Unlock()

	for _, serial := range []uint32{main, aux1, aux2} {
		if serial == 0 {
			continue
		}
		if recv == nil {
			return scanerr.Wrap(scanerr.NotFound, "no sync receiver wired to validate serial %d", serial)
		}
		if _, ok := recv.Get(serial); !ok {
			return scanerr.Wrap(scanerr.NotFound, "sync serial %d not present on the network", serial)
		}
	}

	sys.mu.Lock()
	sys.syncMapping = SyncMapping{Main: main, Aux1: aux1, Aux2: aux2}
	sys.mu.Unlock()
	return nil
}

// SyncMapping returns the currently assigned sync mapping.
func (sys *System) SyncMapping() SyncMapping {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.syncMapping
}

// DefaultSyncMapping assigns the live sync serials ascending to
// Main/Aux1/Aux2, taking at most the first three (§4.9).
func (sys *System) DefaultSyncMapping() error {
	sys.mu.Lock()
	recv := sys.syncRecv
	sys.mu.Unlock()
	if recv == nil {
		return scanerr.Wrap(scanerr.NotFound, "no sync receiver wired")
	}

	live := recv.Snapshot()
	if len(live) == 0 {
		return scanerr.Wrap(scanerr.NotFound, "no live sync devices on the network")
	}
	serials := make([]uint32, len(live))
	for i, d := range live {
		serials[i] = d.Serial
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })

	mapping := SyncMapping{Main: serials[0]}
	if len(serials) > 1 {
		mapping.Aux1 = serials[1]
	}
	if len(serials) > 2 {
		mapping.Aux2 = serials[2]
	}

	sys.mu.Lock()
	sys.syncMapping = mapping
	sys.mu.Unlock()
	return nil
}

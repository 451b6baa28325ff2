package syncrecv

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/wire"
)

func syncV1Bytes(serial uint32, seq uint32) []byte {
	p := &wire.SyncPacket{PacketVersion: 1, Serial: serial, Sequence: seq}
	return p.Encode()
}

func TestReceiver_TracksDeviceBySerial(t *testing.T) {
	var mu sync.Mutex
	var updates []DeviceState

	r := NewReceiver(nil, time.Second, WithOnUpdate(func(d DeviceState) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, d)
	}))

	r.handlePacket(syncV1Bytes(42, 1))
	r.handlePacket(syncV1Bytes(42, 2))
	r.handlePacket(syncV1Bytes(99, 1))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 3)

	d, ok := r.Get(42)
	require.True(t, ok)
	require.Equal(t, uint32(2), d.Packet.Sequence)

	require.Len(t, r.Snapshot(), 2)
}

func TestReceiver_DropsMalformedPacket(t *testing.T) {
	r := NewReceiver(nil, time.Second)
	r.handlePacket([]byte{1, 2, 3})
	require.Empty(t, r.Snapshot())
}

func TestReceiver_EvictsDeviceAfterTimeout(t *testing.T) {
	clock := time.Unix(0, 0)
	var timedOut []uint32

	r := NewReceiver(nil, 5*time.Second,
		WithNowFunc(func() time.Time { return clock }),
		WithOnTimeout(func(serial uint32) { timedOut = append(timedOut, serial) }),
	)

	r.handlePacket(syncV1Bytes(7, 1))
	require.Len(t, r.Snapshot(), 1)

	clock = clock.Add(3 * time.Second)
	r.EvictTimedOut()
	require.Len(t, r.Snapshot(), 1, "device still within timeout window")

	clock = clock.Add(3 * time.Second) // total 6s since last packet > 5s timeout
	r.EvictTimedOut()
	require.Empty(t, r.Snapshot())
	require.Equal(t, []uint32{7}, timedOut)
}

func TestReceiver_RefreshedDeviceResistsTimeout(t *testing.T) {
	clock := time.Unix(0, 0)
	r := NewReceiver(nil, 5*time.Second, WithNowFunc(func() time.Time { return clock }))

	r.handlePacket(syncV1Bytes(7, 1))
	clock = clock.Add(4 * time.Second)
	r.handlePacket(syncV1Bytes(7, 2)) // refreshes LastSeen

	clock = clock.Add(4 * time.Second) // 4s since refresh, still under 5s timeout
	r.EvictTimedOut()
	require.Len(t, r.Snapshot(), 1)
}

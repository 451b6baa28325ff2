package system

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/syncrecv"
	"github.com/scanworks/scanhead-client/internal/wire"
)

func syncPacketBytes(serial uint32) []byte {
	p := &wire.SyncPacket{PacketVersion: 1, Serial: serial}
	return p.Encode()
}

func seededSyncReceiver(t *testing.T, serials ...uint32) *syncrecv.Receiver {
	t.Helper()
	mock := netio.NewMockSocket(nil)
	for _, s := range serials {
		mock.PushPacket(syncPacketBytes(s), nil)
	}
	r := syncrecv.NewReceiver(mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	// Give the receive goroutine time to drain the preloaded packets before
	// the caller reads the receiver's state.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	return r
}

func TestSystem_SetSyncMapping_RejectsZeroMain(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	err := sys.SetSyncMapping(0, 0, 0)
	require.ErrorIs(t, err, scanerr.InvalidArgument)
}

func TestSystem_SetSyncMapping_RejectsAux2WithoutAux1(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	sys.SetSyncReceiver(seededSyncReceiver(t, 1, 2))
	err := sys.SetSyncMapping(1, 0, 2)
	require.ErrorIs(t, err, scanerr.InvalidArgument)
}

func TestSystem_SetSyncMapping_RejectsUnknownSerial(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	sys.SetSyncReceiver(seededSyncReceiver(t, 1))
	err := sys.SetSyncMapping(1, 99, 0)
	require.ErrorIs(t, err, scanerr.NotFound)
}

func TestSystem_SetSyncMapping_AcceptsValidMapping(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	sys.SetSyncReceiver(seededSyncReceiver(t, 10, 20, 30))

	require.NoError(t, sys.SetSyncMapping(10, 20, 30))
	require.Equal(t, SyncMapping{Main: 10, Aux1: 20, Aux2: 30}, sys.SyncMapping())
}

func TestSystem_DefaultSyncMapping_SortsAscending(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	sys.SetSyncReceiver(seededSyncReceiver(t, 30, 10, 20))

	require.NoError(t, sys.DefaultSyncMapping())
	require.Equal(t, SyncMapping{Main: 10, Aux1: 20, Aux2: 30}, sys.SyncMapping())
}

func TestSystem_DefaultSyncMapping_ErrorsWithNoLiveDevices(t *testing.T) {
	sys := New(netio.NewMockSocketFactory(netio.NewMockSocket(nil)), net.ParseIP("10.0.0.1"))
	sys.SetSyncReceiver(seededSyncReceiver(t))

	err := sys.DefaultSyncMapping()
	require.ErrorIs(t, err, scanerr.NotFound)
}

package head

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/align"
	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/session"
	"github.com/scanworks/scanhead-client/internal/wire"
)

func statusBytes(major uint16) []byte {
	s := &wire.Status{Version: wire.VersionTriple{Major: major}}
	return s.Encode()
}

func statusWithRate(major uint16, rate uint32) []byte {
	s := &wire.Status{Version: wire.VersionTriple{Major: major}, MaxScanRateHz: rate}
	return s.Encode()
}

func validConfiguration() Configuration {
	return Configuration{
		Laser:                   wire.MicrosecondWindow{Min: 10, Default: 50, Max: 100},
		Exposure:                wire.MicrosecondWindow{Min: 10, Default: 50, Max: 100},
		LaserDetectionThreshold: 512,
		SaturationThreshold:     512,
		SaturatedPercentage:     50,
		AverageIntensity:        128,
	}
}

func newTestHead(t *testing.T, packets [][]byte) (*Head, *netio.MockSocket) {
	t.Helper()
	mock := netio.NewMockSocket(nil)
	for _, p := range packets {
		mock.PushPacket(p, nil)
	}
	factory := netio.NewMockSocketFactory(mock)

	h, err := New(factory, &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 12345}, net.ParseIP("10.0.0.1"), 1, 3, 99)
	require.NoError(t, err)
	return h, mock
}

func TestHead_SetAlignmentRejectsWhileConnected(t *testing.T) {
	h, _ := newTestHead(t, [][]byte{statusBytes(1)})
	require.NoError(t, h.Connect(context.Background()))

	err := h.SetAlignment(0, 0, 0, 0, align.CableUpstream)
	require.Error(t, err)
	require.NoError(t, h.Disconnect())
}

func TestHead_SetWindowRequiresAlignment(t *testing.T) {
	h, _ := newTestHead(t, nil)
	err := h.SetWindow(0, 30, -30, -30, 30)
	require.Error(t, err)
}

func TestHead_SetWindowSendsEncodedRequest(t *testing.T) {
	h, mock := newTestHead(t, [][]byte{statusBytes(1)})
	require.NoError(t, h.SetAlignment(0, 0, 0, 0, align.CableUpstream))
	require.NoError(t, h.Connect(context.Background()))

	require.NoError(t, h.SetWindow(0, 30, -30, -30, 30))
	require.Equal(t, 2, mock.WrittenCount()) // connect request + window request

	hdr, err := wire.DecodeHeader(mock.Written[1].Data)
	require.NoError(t, err)
	require.Equal(t, wire.TypeWindow, hdr.Type)

	require.NoError(t, h.Disconnect())
}

func TestHead_HandleFragmentPublishesToQueue(t *testing.T) {
	h, _ := newTestHead(t, nil)

	w := wire.NewWriter()
	w.PutU16(wire.MagicData)
	w.PutU8(36)
	w.PutU8(uint8(wire.TypeData))
	w.PutU8(3) // head
	w.PutU8(1) // camera
	w.PutU8(0) // laser
	w.PutU8(0) // part
	w.PutU64(1000)
	w.PutU16(1) // numparts
	w.PutU16(0)
	w.PutU16(0)
	w.PutU16(0) // contents
	w.PutU16(0) // payload len
	w.PutU16(0) // num encoders
	w.PutU16(0)
	w.PutU16(0)
	w.PutZeros(4)

	f, err := wire.DecodeFragment(w.Bytes())
	require.NoError(t, err)

	h.handleFragment(f)

	p, ok := h.TryTakeNextProfile()
	require.True(t, ok)
	require.Equal(t, uint8(3), p.Source.HeadID)
	require.Equal(t, uint64(1), h.Stats().ProfilesAssembled)
}

func TestHead_ConfigureRejectsOutOfRangeWindow(t *testing.T) {
	h, _ := newTestHead(t, nil)

	cfg := validConfiguration()
	cfg.Laser = wire.MicrosecondWindow{Min: 50, Default: 10, Max: 100} // default < min
	err := h.Configure(cfg)
	require.ErrorIs(t, err, scanerr.OutOfRange)

	_, ok := h.Configuration()
	require.False(t, ok)
}

func TestHead_ConfigureRejectsOutOfRangeThreshold(t *testing.T) {
	h, _ := newTestHead(t, nil)

	cfg := validConfiguration()
	cfg.SaturatedPercentage = 0 // must be 1..100
	err := h.Configure(cfg)
	require.ErrorIs(t, err, scanerr.OutOfRange)
}

func TestHead_ConfigureStoresValidConfiguration(t *testing.T) {
	h, _ := newTestHead(t, nil)

	cfg := validConfiguration()
	require.NoError(t, h.Configure(cfg))

	got, ok := h.Configuration()
	require.True(t, ok)
	require.Equal(t, cfg, got)
}

func TestHead_ConfigureRejectsWhileScanning(t *testing.T) {
	h, _ := newTestHead(t, [][]byte{statusWithRate(1, 1000)})
	require.NoError(t, h.Connect(context.Background()))
	require.NoError(t, h.StartScanning(session.StartScanningParams{RateHz: 500}))

	err := h.Configure(validConfiguration())
	require.ErrorIs(t, err, scanerr.AlreadyScanning)

	require.NoError(t, h.Disconnect())
}

func TestHead_StartScanningRejectsRateAboveStatusMax(t *testing.T) {
	h, _ := newTestHead(t, [][]byte{statusWithRate(1, 100)})
	require.NoError(t, h.Connect(context.Background()))

	err := h.StartScanning(session.StartScanningParams{RateHz: 200})
	require.ErrorIs(t, err, scanerr.OutOfRange)

	require.NoError(t, h.Disconnect())
}

func TestHead_StartScanningClearsStaleQueuedProfiles(t *testing.T) {
	h, _ := newTestHead(t, [][]byte{statusWithRate(1, 1000)})
	require.NoError(t, h.Connect(context.Background()))

	h.queue.Push(&profile.Profile{})
	require.Equal(t, 1, h.queue.Len())

	require.NoError(t, h.StartScanning(session.StartScanningParams{RateHz: 500}))
	require.Equal(t, 0, h.queue.Len())

	require.NoError(t, h.Disconnect())
}

func TestHead_TakeNextProfileErrorsWhenContextExpires(t *testing.T) {
	h, _ := newTestHead(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.TakeNextProfile(ctx)
	require.Error(t, err)
}

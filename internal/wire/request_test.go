package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStartScanningRequestEncode_ScenarioB exercises the byte-exact scan
// request encoding scenario: rate=400Hz, format XY|LM with steps {1,1}.
func TestStartScanningRequestEncode_ScenarioB(t *testing.T) {
	req := StartScanningRequest{
		ClientPort:   5000,
		SessionID:    1,
		HeadID:       0,
		ExposureMode: 0,
		Laser:        MicrosecondWindow{Min: 100, Default: 500, Max: 1000},
		Exposure:     MicrosecondWindow{Min: 10000, Default: 500000, Max: 1000000},

		LaserDetectionThreshold: 120,
		SaturationThreshold:     800,
		SaturatedPercentage:     30,
		AverageIntensity:        150,

		RateHz:            400,
		ScanPhaseOffsetUS: 0,
		IntMax:            0,

		DataTypes: DataTypeXY | DataTypeLM,
		StartCol:  0,
		EndCol:    1455,
		Steps:     []int16{1, 1},
	}

	buf := req.Encode()
	require.Len(t, buf, 78)

	r := NewReader(buf)
	r.Seek(16)
	vals := make([]int32, 6)
	for i := range vals {
		v, err := r.I32()
		require.NoError(t, err)
		vals[i] = v
	}
	require.Equal(t, []int32{100, 500, 1000, 10000, 500000, 1000000}, vals)

	r.Seek(56)
	period, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(2500000), period)

	r.Seek(68)
	bitfield, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(DataTypeXY|DataTypeLM), bitfield)

	r.Seek(74)
	s0, _ := r.I16()
	s1, _ := r.I16()
	require.Equal(t, int16(1), s0)
	require.Equal(t, int16(1), s1)
}

func TestBroadcastConnectRequestEncode(t *testing.T) {
	req := BroadcastConnectRequest{
		ClientPort:     5001,
		SessionID:      3,
		HeadID:         0,
		ConnectionType: ConnectionNormal,
		Serial:         20211,
	}
	buf := req.Encode()
	require.Len(t, buf, 17)

	hdr, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, MagicControl, hdr.Magic)
	require.Equal(t, TypeBroadcastConnect, hdr.Type)

	// serial is little-endian starting at offset 13
	serial := uint32(buf[13]) | uint32(buf[14])<<8 | uint32(buf[15])<<16 | uint32(buf[16])<<24
	require.Equal(t, uint32(20211), serial)
}

func TestDisconnectRequestEncode(t *testing.T) {
	buf := DisconnectRequest{}.Encode()
	require.Len(t, buf, 4)
	hdr, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, TypeDisconnect, hdr.Type)
}

func TestWindowRequestEncode(t *testing.T) {
	constraints := []LineConstraint{
		{X1: -30000, Y1: 30000, X2: 30000, Y2: 30000},
		{X1: 30000, Y1: -30000, X2: -30000, Y2: -30000},
		{X1: 30000, Y1: 30000, X2: 30000, Y2: -30000},
		{X1: -30000, Y1: -30000, X2: -30000, Y2: 30000},
	}
	req := WindowRequest{CameraID: 0, Constraints: constraints}
	buf := req.Encode()
	require.Len(t, buf, HeaderSize+1+16*4)
}

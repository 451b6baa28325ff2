package wire

import "net"

// BroadcastConnectRequest is the client->device connect probe (§6).
type BroadcastConnectRequest struct {
	ClientIP       net.IP
	ClientPort     uint16
	SessionID      uint8
	HeadID         uint8 // 0 in the initial request
	ConnectionType ConnectionType
	Serial         uint32
}

// Encode serializes a BroadcastConnect request: 17 bytes total (4-byte
// header + 13-byte payload). The serial field is written little-endian per
// §6 ("explicit little-byte order: bytes [3,2,1,0]").
func (r BroadcastConnectRequest) Encode() []byte {
	w := NewWriterSize(17)
	w.PutU16(MagicControl)
	w.PutU8(17) // size: total packet length (§6)
	w.PutU8(uint8(TypeBroadcastConnect))
	if err := w.PutIPv4(r.ClientIP); err != nil {
		w.PutZeros(4)
	}
	w.PutU16(r.ClientPort)
	w.PutU8(r.SessionID)
	w.PutU8(r.HeadID)
	w.PutU8(uint8(r.ConnectionType))
	// little-endian serial
	w.PutU8(uint8(r.Serial))
	w.PutU8(uint8(r.Serial >> 8))
	w.PutU8(uint8(r.Serial >> 16))
	w.PutU8(uint8(r.Serial >> 24))
	return w.Bytes()
}

// DisconnectRequest is the client->device disconnect datagram: header only.
type DisconnectRequest struct{}

// Encode serializes a Disconnect request: 4 bytes total.
func (DisconnectRequest) Encode() []byte {
	w := NewWriterSize(4)
	w.PutU16(MagicControl)
	w.PutU8(4) // size: total packet length (§6)
	w.PutU8(uint8(TypeDisconnect))
	return w.Bytes()
}

// LineConstraint is one (x1,y1)->(x2,y2) boundary of a scan window, in
// milli-inches, already transformed to raw (device) coordinates.
type LineConstraint struct {
	X1, Y1, X2, Y2 int32
}

// WindowRequest carries a camera's window as a set of line constraints.
type WindowRequest struct {
	CameraID    uint8
	Constraints []LineConstraint
}

// Encode serializes a Window request.
func (r WindowRequest) Encode() []byte {
	payloadLen := 1 + len(r.Constraints)*16
	total := HeaderSize + payloadLen
	w := NewWriterSize(total)
	w.PutU16(MagicControl)
	w.PutU8(uint8(total)) // size: total packet length (§6)
	w.PutU8(uint8(TypeWindow))
	w.PutU8(r.CameraID)
	for _, c := range r.Constraints {
		w.PutI32(c.X1)
		w.PutI32(c.Y1)
		w.PutI32(c.X2)
		w.PutI32(c.Y2)
	}
	return w.Bytes()
}

// MicrosecondWindow is a {min, default, max} triple in microseconds.
type MicrosecondWindow struct {
	Min, Default, Max int32
}

// StartScanningRequest is the client->device periodic scan-request packet
// (§6). Length = 74 + 2*len(Steps) bytes total.
type StartScanningRequest struct {
	ClientPort int16
	SessionID  uint8
	HeadID     uint8
	// ExposureMode selects how the device interprets the exposure window;
	// 0 is the device's default auto-exposure mode.
	ExposureMode uint8

	Laser    MicrosecondWindow
	Exposure MicrosecondWindow

	LaserDetectionThreshold int32
	SaturationThreshold     int32
	SaturatedPercentage     int32
	AverageIntensity        int32

	RateHz             float64
	ScanPhaseOffsetUS  int32
	IntMax             int32
	DataTypes          DataType
	StartCol, EndCol   int16
	Steps              []int16
}

// PeriodNanos returns the device's period-ns field: 1e9/rate, rounded.
func (r StartScanningRequest) PeriodNanos() int32 {
	if r.RateHz <= 0 {
		return 0
	}
	return int32(1e9/r.RateHz + 0.5)
}

// Encode serializes a StartScanning request. The field layout follows §6 and
// the byte-exact example in the scan-request encoding scenario: a 12-byte
// reserved/identification block precedes the laser window at offset 16 (the
// final "reserved" field following exposure-mode is 2 bytes wide rather than
// 1, which is what pads the block to 12 bytes and keeps every subsequent
// i32 field 4-byte aligned from offset 16 onward).
func (r StartScanningRequest) Encode() []byte {
	payloadLen := 70 + 2*len(r.Steps)
	total := HeaderSize + payloadLen
	w := NewWriterSize(total)
	w.PutU16(MagicControl)
	w.PutU8(uint8(total)) // size: total packet length (§6)
	w.PutU8(uint8(TypeStartScanning))

	w.PutZeros(4) // reserved
	w.PutI16(r.ClientPort)
	w.PutU8(r.SessionID)
	w.PutU8(r.HeadID)
	w.PutU8(0) // reserved
	w.PutU8(r.ExposureMode)
	w.PutZeros(2) // reserved (widened to pad to offset 16)

	w.PutI32(r.Laser.Min)
	w.PutI32(r.Laser.Default)
	w.PutI32(r.Laser.Max)
	w.PutI32(r.Exposure.Min)
	w.PutI32(r.Exposure.Default)
	w.PutI32(r.Exposure.Max)

	w.PutI32(r.LaserDetectionThreshold)
	w.PutI32(r.SaturationThreshold)
	w.PutI32(r.SaturatedPercentage)
	w.PutI32(r.AverageIntensity)

	w.PutI32(r.PeriodNanos())
	w.PutI32(r.ScanPhaseOffsetUS)
	w.PutI32(r.IntMax)

	w.PutU16(uint16(r.DataTypes))
	w.PutI16(r.StartCol)
	w.PutI16(r.EndCol)

	for _, s := range r.Steps {
		w.PutI16(s)
	}

	return w.Bytes()
}

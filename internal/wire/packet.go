package wire

import "github.com/scanworks/scanhead-client/internal/scanerr"

// Magic values distinguish the two datagram families on the data socket (§6).
const (
	MagicData    uint16 = 0xFACD // profile data fragment
	MagicControl uint16 = 0xFACE // status, connect, disconnect, window, start-scan
)

// PacketType is the 8-bit type code following the 4-byte header.
type PacketType uint8

const (
	TypeBroadcastConnect PacketType = 1
	TypeDisconnect       PacketType = 2
	TypeWindow           PacketType = 3
	TypeStartScanning    PacketType = 4
	TypeStatus           PacketType = 5
	TypeData             PacketType = 6
)

// HeaderSize is the fixed 4-byte header present on every datagram.
const HeaderSize = 4

// Header is the common prefix of every datagram: magic, size, type.
type Header struct {
	Magic uint16
	Size  uint8
	Type  PacketType
}

// DecodeHeader reads the 4-byte header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, scanerr.Wrap(scanerr.BadPacket, "short packet: %d bytes, need at least %d", len(buf), HeaderSize)
	}
	r := NewReader(buf)
	magic, _ := r.U16()
	size, _ := r.U8()
	typ, _ := r.U8()
	return Header{Magic: magic, Size: size, Type: PacketType(typ)}, nil
}

// DataType is the 6-bit payload-selection bitfield (LM|XY|PW|VR|SP|IM, §3/§4.2).
type DataType uint16

const (
	DataTypeLM DataType = 1 << 0 // brightness/laser-margin, 1 byte per column
	DataTypeXY DataType = 1 << 1 // raw X/Y pair in milli-inches, 4 bytes per column
	DataTypePW DataType = 1 << 2 // pulse width, reserved, 2 bytes per column
	DataTypeVR DataType = 1 << 3 // valley ratio, reserved, 2 bytes per column
	DataTypeSP DataType = 1 << 4 // subpixel camera row, 2 bytes per column
	DataTypeIM DataType = 1 << 5 // raw image row bytes
)

// orderedDataTypes lists the canonical flag order payloads are appended in
// (§4.2): LM, XY, PW, VR, SP, IM.
var orderedDataTypes = []DataType{DataTypeLM, DataTypeXY, DataTypePW, DataTypeVR, DataTypeSP, DataTypeIM}

// TypeSize returns the per-column byte width of t, or 0 if t is not a single
// recognized flag.
func TypeSize(t DataType) int {
	switch t {
	case DataTypeLM:
		return 1
	case DataTypeXY:
		return 4
	case DataTypePW:
		return 2
	case DataTypeVR:
		return 2
	case DataTypeSP:
		return 2
	case DataTypeIM:
		return 1
	default:
		return 0
	}
}

// Has reports whether flag is set in the bitfield d.
func (d DataType) Has(flag DataType) bool { return d&flag != 0 }

// OrderedFlags returns the flags set in d in canonical wire order.
func (d DataType) OrderedFlags() []DataType {
	var out []DataType
	for _, f := range orderedDataTypes {
		if d.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Sentinels from §6.
const (
	InvalidXY           int16 = -32768
	InvalidSubpixelRow   int16 = 32767 // i16 max
	InvalidBrightness    uint8 = 0
)

// ConnectionType distinguishes how a session was established.
type ConnectionType uint8

const (
	ConnectionNormal  ConnectionType = 0
	ConnectionDefault ConnectionType = 1
)

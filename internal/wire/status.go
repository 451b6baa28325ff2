package wire

import (
	"math"
	"net"

	"github.com/scanworks/scanhead-client/internal/scanerr"
)

// VersionTriple is a semantic firmware/client version.
type VersionTriple struct {
	Major, Minor, Patch uint16
}

// Compatible reports whether a and b share a major version, the only
// compatibility criterion the protocol specifies (§6/§7: "major-version
// mismatch ... is fatal").
func (a VersionTriple) Compatible(b VersionTriple) bool { return a.Major == b.Major }

const (
	productTagSize   = 32
	statusReservedSz = 8
)

// Status is the decoded device->client status payload (§6). Per-camera
// fields (pixels-in-window, temperature) and the encoder array are sized by
// NumEncoders/NumCameras, which appear mid-payload ahead of the arrays they
// size — the layout below follows that ordering exactly.
type Status struct {
	Version     VersionTriple
	ProductTag  string
	Flags       uint32
	Serial      uint32
	MaxScanRateHz uint32
	HeadIP      net.IP
	ClientIP    net.IP
	ClientPort  uint16
	SyncID      uint32
	GlobalTimeNS uint64
	PacketsSent  uint64
	ProfilesSent uint64

	NumEncoders uint8
	NumCameras  uint8

	Encoders        []int64
	PixelsInWindow  []uint32
	TemperatureC    []float32
}

// DecodeStatus decodes a Status control datagram.
func DecodeStatus(buf []byte) (*Status, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != MagicControl || hdr.Type != TypeStatus {
		return nil, scanerr.Wrap(scanerr.BadPacket, "not a status packet: magic=0x%04X type=%d", hdr.Magic, hdr.Type)
	}

	r := NewReader(buf)
	r.Seek(HeaderSize)

	s := &Status{}
	s.Version.Major, _ = r.U16()
	s.Version.Minor, _ = r.U16()
	s.Version.Patch, _ = r.U16()

	tagBytes, err := r.Bytes(productTagSize)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.BadPacket, "short status reading product tag: %v", err)
	}
	s.ProductTag = trimTag(tagBytes)

	s.Flags, _ = r.U32()
	s.Serial, _ = r.U32()
	s.MaxScanRateHz, _ = r.U32()
	s.HeadIP, _ = r.IPv4()
	s.ClientIP, _ = r.IPv4()
	s.ClientPort, _ = r.U16()
	s.SyncID, _ = r.U32()
	s.GlobalTimeNS, _ = r.U64()
	s.PacketsSent, _ = r.U64()
	s.ProfilesSent, _ = r.U64()
	s.NumEncoders, _ = r.U8()
	s.NumCameras, _ = r.U8()
	r.Skip(statusReservedSz)

	s.Encoders = make([]int64, s.NumEncoders)
	for i := range s.Encoders {
		v, err := r.I64()
		if err != nil {
			return nil, scanerr.Wrap(scanerr.BadPacket, "short status reading encoder %d: %v", i, err)
		}
		s.Encoders[i] = v
	}

	s.PixelsInWindow = make([]uint32, s.NumCameras)
	for i := range s.PixelsInWindow {
		v, err := r.U32()
		if err != nil {
			return nil, scanerr.Wrap(scanerr.BadPacket, "short status reading pixels-in-window %d: %v", i, err)
		}
		s.PixelsInWindow[i] = v
	}

	s.TemperatureC = make([]float32, s.NumCameras)
	for i := range s.TemperatureC {
		v, err := r.F32()
		if err != nil {
			return nil, scanerr.Wrap(scanerr.BadPacket, "short status reading temperature %d: %v", i, err)
		}
		s.TemperatureC[i] = v
	}

	return s, nil
}

// Encode serializes a Status payload symmetrically with DecodeStatus.
func (s *Status) Encode() []byte {
	payloadLen := 6 + productTagSize + 4 + 4 + 4 + 4 + 4 + 2 + 4 + 8 + 8 + 8 + 1 + 1 + statusReservedSz +
		len(s.Encoders)*8 + len(s.PixelsInWindow)*4 + len(s.TemperatureC)*4
	total := HeaderSize + payloadLen
	w := NewWriterSize(total)
	w.PutU16(MagicControl)
	w.PutU8(uint8(total & 0xFF))
	w.PutU8(uint8(TypeStatus))

	w.PutU16(s.Version.Major)
	w.PutU16(s.Version.Minor)
	w.PutU16(s.Version.Patch)

	tag := make([]byte, productTagSize)
	copy(tag, s.ProductTag)
	w.PutBytes(tag)

	w.PutU32(s.Flags)
	w.PutU32(s.Serial)
	w.PutU32(s.MaxScanRateHz)
	if err := w.PutIPv4(s.HeadIP); err != nil {
		w.PutZeros(4)
	}
	if err := w.PutIPv4(s.ClientIP); err != nil {
		w.PutZeros(4)
	}
	w.PutU16(s.ClientPort)
	w.PutU32(s.SyncID)
	w.PutU64(s.GlobalTimeNS)
	w.PutU64(s.PacketsSent)
	w.PutU64(s.ProfilesSent)
	w.PutU8(uint8(len(s.Encoders)))
	w.PutU8(uint8(len(s.PixelsInWindow)))
	w.PutZeros(statusReservedSz)

	for _, e := range s.Encoders {
		w.PutI64(e)
	}
	for _, p := range s.PixelsInWindow {
		w.PutU32(p)
	}
	for _, t := range s.TemperatureC {
		w.PutU32(math.Float32bits(t))
	}

	return w.Bytes()
}

func trimTag(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

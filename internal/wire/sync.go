package wire

import "github.com/scanworks/scanhead-client/internal/scanerr"

// Sync-packet discriminator: 0xAAAA marks a legacy v2 payload; for v3/v4 the
// same field carries the literal version number (3 or 4). See DESIGN.md for
// why this reading was chosen over treating the field as a fixed v2-only
// marker (v2-v4 packets must all still fit one 76-byte layout).
const syncV2Discriminator = 0xAAAA

const (
	SyncV1Size = 32
	SyncV2Size = 76 // shared fixed size for v2, v3 and v4
)

// SyncPacket is a decoded sync-device broadcast (§4.3/§6).
type SyncPacket struct {
	Serial   uint32
	Sequence uint32

	EncoderTimestampNS int64 // seconds*1e9 + ns
	LastTxTimestampNS  int64
	EncoderValue       int64

	PacketVersion int // 1..4

	Flags uint32
	AuxYTimestampNS   int64
	IndexZTimestampNS int64
	SyncTimestampNS   int64
	Version           VersionTriple // only meaningful when PacketVersion >= 3
	LaserDisableNS    int64         // only meaningful when PacketVersion >= 4
}

// DecodeSync decodes a sync-device UDP payload. Packets are distinguished
// purely by size: 32 bytes is v1; 76 bytes is v2/v3/v4, further
// distinguished by the discriminator field (§4.3).
func DecodeSync(buf []byte) (*SyncPacket, error) {
	switch len(buf) {
	case SyncV1Size:
		return decodeSyncV1(buf)
	case SyncV2Size:
		return decodeSyncV2Plus(buf)
	default:
		return nil, scanerr.Wrap(scanerr.BadPacket, "unrecognized sync packet size: %d", len(buf))
	}
}

func decodeSyncV1(buf []byte) (*SyncPacket, error) {
	r := NewReader(buf)
	p := &SyncPacket{PacketVersion: 1}
	var err error
	if p.Serial, err = r.U32(); err != nil {
		return nil, scanerr.Wrap(scanerr.BadPacket, "short sync v1: %v", err)
	}
	p.Sequence, _ = r.U32()
	encSec, _ := r.U32()
	encNS, _ := r.U32()
	p.EncoderTimestampNS = int64(encSec)*1e9 + int64(encNS)
	lastSec, _ := r.U32()
	lastNS, _ := r.U32()
	p.LastTxTimestampNS = int64(lastSec)*1e9 + int64(lastNS)
	p.EncoderValue, _ = r.I64()
	return p, nil
}

func decodeSyncV2Plus(buf []byte) (*SyncPacket, error) {
	p, err := decodeSyncV1(buf[:SyncV1Size])
	if err != nil {
		return nil, err
	}

	r := NewReader(buf)
	r.Seek(SyncV1Size)

	p.Flags, _ = r.U32()
	auxSec, _ := r.U32()
	auxNS, _ := r.U32()
	p.AuxYTimestampNS = int64(auxSec)*1e9 + int64(auxNS)
	idxSec, _ := r.U32()
	idxNS, _ := r.U32()
	p.IndexZTimestampNS = int64(idxSec)*1e9 + int64(idxNS)
	syncSec, _ := r.U32()
	syncNS, _ := r.U32()
	p.SyncTimestampNS = int64(syncSec)*1e9 + int64(syncNS)

	discriminator, err := r.U16()
	if err != nil {
		return nil, scanerr.Wrap(scanerr.BadPacket, "short sync v2+: %v", err)
	}

	if discriminator == syncV2Discriminator {
		p.PacketVersion = 2
		return p, nil
	}

	p.PacketVersion = int(discriminator)
	if p.PacketVersion < 3 {
		return nil, scanerr.Wrap(scanerr.BadPacket, "unrecognized sync discriminator: 0x%04X", discriminator)
	}

	p.Version.Major, _ = r.U16()
	p.Version.Minor, _ = r.U16()
	p.Version.Patch, _ = r.U16()

	if p.PacketVersion >= 4 {
		ldSec, _ := r.U32()
		ldNS, _ := r.U32()
		p.LaserDisableNS = int64(ldSec)*1e9 + int64(ldNS)
	}

	return p, nil
}

// Encode serializes a SyncPacket back to its wire form, for tests and replay
// tooling. v1 packets ignore every field beyond EncoderValue.
func (p *SyncPacket) Encode() []byte {
	w := NewWriterSize(SyncV2Size)
	w.PutU32(p.Serial)
	w.PutU32(p.Sequence)
	w.PutU32(uint32(p.EncoderTimestampNS / 1e9))
	w.PutU32(uint32(p.EncoderTimestampNS % 1e9))
	w.PutU32(uint32(p.LastTxTimestampNS / 1e9))
	w.PutU32(uint32(p.LastTxTimestampNS % 1e9))
	w.PutI64(p.EncoderValue)

	if p.PacketVersion == 1 {
		return w.Bytes()
	}

	w.PutU32(p.Flags)
	w.PutU32(uint32(p.AuxYTimestampNS / 1e9))
	w.PutU32(uint32(p.AuxYTimestampNS % 1e9))
	w.PutU32(uint32(p.IndexZTimestampNS / 1e9))
	w.PutU32(uint32(p.IndexZTimestampNS % 1e9))
	w.PutU32(uint32(p.SyncTimestampNS / 1e9))
	w.PutU32(uint32(p.SyncTimestampNS % 1e9))

	if p.PacketVersion == 2 {
		w.PutU16(syncV2Discriminator)
		w.PutZeros(SyncV2Size - w.Len())
		return w.Bytes()
	}

	w.PutU16(uint16(p.PacketVersion))
	w.PutU16(p.Version.Major)
	w.PutU16(p.Version.Minor)
	w.PutU16(p.Version.Patch)

	if p.PacketVersion >= 4 {
		w.PutU32(uint32(p.LaserDisableNS / 1e9))
		w.PutU32(uint32(p.LaserDisableNS % 1e9))
	} else {
		w.PutZeros(SyncV2Size - w.Len())
	}

	return w.Bytes()
}

package wire

import "github.com/scanworks/scanhead-client/internal/scanerr"

// FragmentHeaderSize is the fixed 32-byte data-fragment header (§4.2).
const FragmentHeaderSize = 32

// Layout describes where one data type's samples live within a fragment's
// payload and how they stride into the destination point array (§4.2).
type Layout struct {
	Step        uint16 // column decimation factor for this type
	NumVals     int    // number of samples this fragment carries for this type
	PayloadSize int    // bytes this type occupies in the payload
	Offset      int    // byte offset of this type's payload within the fragment payload
}

// DataFragment is a decoded profile data-fragment datagram.
type DataFragment struct {
	HeadID   uint8
	CameraID uint8
	LaserID  uint8
	PartNum  uint8
	NumParts uint16

	Timestamp    uint64 // head-local nanoseconds
	LaserOnTime  uint16 // microseconds
	ExposureTime uint16 // microseconds
	Contents     DataType
	StartCol     uint16
	EndCol       uint16

	Encoders []int64

	Layouts map[DataType]Layout
	Payload []byte // raw payload bytes, sliced per Layouts[t].Offset:+PayloadSize
}

// Source identifies the (head, camera, laser) origin of a fragment or profile.
type Source struct {
	HeadID   uint8
	CameraID uint8
	LaserID  uint8
}

// Source returns this fragment's origin triple.
func (f *DataFragment) Source() Source {
	return Source{HeadID: f.HeadID, CameraID: f.CameraID, LaserID: f.LaserID}
}

// NumCols returns the column span this fragment set covers.
func (f *DataFragment) NumCols() int {
	return int(f.EndCol) - int(f.StartCol) + 1
}

// ComputeLayout derives the per-type fragment layout from (numCols, numParts,
// partNum, step) per §4.2: value-count = floor(numCols / (numParts*step)),
// incremented by one for this part if ((numCols/step) mod numParts) > partNum.
// IM is special-cased: its value/payload count is simply the payload length.
func ComputeLayout(t DataType, numCols, numParts, partNum int, step uint16, payloadLen int) Layout {
	if t == DataTypeIM {
		return Layout{Step: step, NumVals: payloadLen, PayloadSize: payloadLen}
	}
	s := int(step)
	if s <= 0 {
		s = 1
	}
	base := numCols / (numParts * s)
	if (numCols/s)%numParts > partNum {
		base++
	}
	return Layout{Step: step, NumVals: base, PayloadSize: base * TypeSize(t)}
}

// DecodeFragment decodes a complete data-fragment datagram (header already
// stripped is not assumed: buf starts at the 4-byte packet header).
func DecodeFragment(buf []byte) (*DataFragment, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != MagicData {
		return nil, scanerr.Wrap(scanerr.BadPacket, "not a data fragment: magic=0x%04X", hdr.Magic)
	}
	if len(buf) < HeaderSize+FragmentHeaderSize {
		return nil, scanerr.Wrap(scanerr.BadPacket, "fragment too short: %d bytes", len(buf))
	}

	r := NewReader(buf)
	r.Seek(HeaderSize)

	f := &DataFragment{}
	f.HeadID, _ = r.U8()
	f.CameraID, _ = r.U8()
	f.LaserID, _ = r.U8()
	f.PartNum, _ = r.U8()
	f.Timestamp, _ = r.U64()
	numParts, _ := r.U16()
	f.NumParts = numParts
	f.LaserOnTime, _ = r.U16()
	f.ExposureTime, _ = r.U16()
	bitfield, _ := r.U16()
	f.Contents = DataType(bitfield)
	payloadLen, _ := r.U16()
	numEncoders, _ := r.U16()
	f.StartCol, _ = r.U16()
	f.EndCol, _ = r.U16()
	r.Skip(4) // reserved

	flags := f.Contents.OrderedFlags()
	steps := make(map[DataType]uint16, len(flags))
	for _, t := range flags {
		s, err := r.U16()
		if err != nil {
			return nil, scanerr.Wrap(scanerr.BadPacket, "short fragment reading step for type %d: %v", t, err)
		}
		steps[t] = s
	}

	f.Encoders = make([]int64, numEncoders)
	for i := range f.Encoders {
		v, err := r.I64()
		if err != nil {
			return nil, scanerr.Wrap(scanerr.BadPacket, "short fragment reading encoder %d: %v", i, err)
		}
		f.Encoders[i] = v
	}

	payload, err := r.Bytes(int(payloadLen))
	if err != nil {
		return nil, scanerr.Wrap(scanerr.BadPacket, "short fragment payload: %v", err)
	}
	f.Payload = payload

	numCols := f.NumCols()
	f.Layouts = make(map[DataType]Layout, len(flags))
	offset := 0
	for _, t := range flags {
		var layout Layout
		if t == DataTypeIM {
			layout = Layout{Step: steps[t], NumVals: int(payloadLen), PayloadSize: int(payloadLen), Offset: offset}
		} else {
			layout = ComputeLayout(t, numCols, int(f.NumParts), int(f.PartNum), steps[t], 0)
			layout.Offset = offset
		}
		f.Layouts[t] = layout
		offset += layout.PayloadSize
	}
	if offset > len(payload) {
		return nil, scanerr.Wrap(scanerr.BadPacket, "fragment payload too short for declared layouts: need %d, have %d", offset, len(payload))
	}

	return f, nil
}

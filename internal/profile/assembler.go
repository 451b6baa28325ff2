package profile

import (
	"math"
	"time"

	"github.com/scanworks/scanhead-client/internal/align"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// AlignmentLookup resolves the current alignment for a camera, so the
// assembler can apply the latest calibration without holding its own copy.
type AlignmentLookup func(cameraID uint8) *align.Alignment

// Assembler turns complete fragment sets into Profiles, decoding each data
// type's payload and applying the camera's alignment transform to XY pairs
// (§4.6).
type Assembler struct {
	table  *FragmentSetTable
	ring   *Ring
	lookup AlignmentLookup
}

// NewAssembler builds an assembler backed by a fixed-size ring of working
// profiles and a fragment-set table that evicts sets older than maxAge.
func NewAssembler(ringSize int, maxAge time.Duration, lookup AlignmentLookup) *Assembler {
	return &Assembler{
		table:  NewFragmentSetTable(maxAge),
		ring:   NewRing(ringSize),
		lookup: lookup,
	}
}

// Feed folds one decoded data fragment into its set. It returns a Profile,
// borrowed from the ring and populated from the set's fragments, once every
// part has arrived; nil otherwise.
func (a *Assembler) Feed(f *wire.DataFragment, now time.Time) (*Profile, error) {
	fs, complete, err := a.table.Add(f, now)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, nil
	}
	return a.assemble(fs), nil
}

// EvictStale drops incomplete fragment sets older than the assembler's
// configured age and reports how many were dropped.
func (a *Assembler) EvictStale(now time.Time) int {
	return a.table.EvictStale(now)
}

func (a *Assembler) assemble(fs *FragmentSet) *Profile {
	parts := fs.Parts()
	first := parts[0]

	p := a.ring.Borrow()
	p.Source = fs.Source()
	p.Timestamp = fs.timestamp
	p.LaserOnTime = first.LaserOnTime
	p.ExposureTime = first.ExposureTime
	p.DataFormat = first.Contents
	p.Encoders = append(p.Encoders[:0], first.Encoders...)

	var coeff align.Coefficients
	haveAlignment := false
	if a.lookup != nil {
		if alignment := a.lookup(fs.source.CameraID); alignment != nil {
			coeff = alignment.Coefficients()
			haveAlignment = true
		}
	}

	numCols := first.NumCols()
	startCol := int(first.StartCol)

	if first.Contents.Has(wire.DataTypeSP) && cap(p.SubpixelRows) < RawLen {
		p.SubpixelRows = make([]int16, RawLen)
	}
	if p.SubpixelRows != nil {
		for i := range p.SubpixelRows[:cap(p.SubpixelRows)] {
			p.SubpixelRows[i] = wire.InvalidSubpixelRow
		}
		p.SubpixelRows = p.SubpixelRows[:RawLen]
	}

	valid := 0
	for partNum, f := range parts {
		for _, t := range f.Contents.OrderedFlags() {
			layout, ok := f.Layouts[t]
			if !ok {
				continue
			}
			seg := f.Payload[layout.Offset : layout.Offset+layout.PayloadSize]

			switch t {
			case wire.DataTypeLM:
				decodeColumnPass(layout, numCols, int(first.NumParts), partNum, startCol, func(col, i int) {
					if col < 0 || col >= RawLen {
						return
					}
					p.Points[col].Brightness = seg[i]
				})
			case wire.DataTypeXY:
				decodeColumnPass(layout, numCols, int(first.NumParts), partNum, startCol, func(col, i int) {
					if col < 0 || col >= RawLen {
						return
					}
					rawX := int16(uint16(seg[i*4])<<8 | uint16(seg[i*4+1]))
					rawY := int16(uint16(seg[i*4+2])<<8 | uint16(seg[i*4+3]))
					if rawX == wire.InvalidXY || rawY == wire.InvalidXY {
						p.Points[col].X = math.NaN()
						p.Points[col].Y = math.NaN()
						return
					}
					if haveAlignment {
						p.Points[col].X, p.Points[col].Y = align.ApplyForward(coeff, float64(rawX), float64(rawY))
					} else {
						p.Points[col].X = float64(rawX) / 1000
						p.Points[col].Y = float64(rawY) / 1000
					}
					valid++
				})
			case wire.DataTypeSP:
				decodeColumnPass(layout, numCols, int(first.NumParts), partNum, startCol, func(col, i int) {
					if col < 0 || col >= RawLen || p.SubpixelRows == nil {
						return
					}
					p.SubpixelRows[col] = int16(uint16(seg[i*2])<<8 | uint16(seg[i*2+1]))
				})
			case wire.DataTypeIM:
				if partNum == len(parts)-1 {
					decodeImageSubpixelRow(p, seg)
				} else {
					appendImageRow(p, partNum, seg)
				}
			}
		}
	}
	p.ValidPointCount = valid
	return p
}

// decodeColumnPass invokes fn(absoluteColumn, valueIndex) for each of a
// part's samples, given the round-robin distribution ComputeLayout assumes:
// this part owns every ((partNum)+k*numParts)-th logical column, strided by
// the type's step (§4.2).
func decodeColumnPass(layout Layout, numCols, numParts, partNum, startCol int, fn func(col, i int)) {
	step := int(layout.Step)
	if step <= 0 {
		step = 1
	}
	for i := 0; i < layout.NumVals; i++ {
		logical := partNum + i*numParts
		col := startCol + logical*step
		fn(col, i)
	}
}

// appendImageRow writes one non-final IM fragment's raw row bytes into the
// image buffer at offset partNum·4·CameraCols (§4.6).
func appendImageRow(p *Profile, partNum int, row []byte) {
	offset := partNum * 4 * CameraCols
	need := offset + len(row)
	if cap(p.Image) < need {
		grown := make([]byte, need)
		copy(grown, p.Image)
		p.Image = grown
	} else if len(p.Image) < need {
		p.Image = p.Image[:need]
	}
	copy(p.Image[offset:need], row)
}

// decodeImageSubpixelRow decodes the final IM fragment of an image-mode
// capture: CameraCols (row u16, brightness u16) pairs. A brightness below
// 0x8000 is scaled by /7 and kept; at or above it the column is marked
// invalid and brightness zeroed (§4.6).
func decodeImageSubpixelRow(p *Profile, seg []byte) {
	if cap(p.SubpixelRows) < CameraCols {
		p.SubpixelRows = make([]int16, CameraCols)
	}
	p.SubpixelRows = p.SubpixelRows[:CameraCols]

	n := len(seg) / 4
	if n > CameraCols {
		n = CameraCols
	}
	for col := 0; col < n; col++ {
		row := int16(uint16(seg[col*4])<<8 | uint16(seg[col*4+1]))
		brightness := uint16(seg[col*4+2])<<8 | uint16(seg[col*4+3])
		if brightness < 0x8000 {
			p.SubpixelRows[col] = row
			p.Points[col].Brightness = uint8(brightness / 7)
		} else {
			p.SubpixelRows[col] = wire.InvalidSubpixelRow
			p.Points[col].Brightness = 0
		}
	}
}

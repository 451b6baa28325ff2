// Package presets provides named data-format presets (§4.11):
// a closed table mapping a named format to its data-type bitfield and a
// per-type step list in canonical flag order (LM, XY, PW, VR, SP, IM), so
// callers can start from one of these instead of hand-assembling a
// StartScanningRequest's bitfield/step fields directly.
package presets

import (
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/session"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// Preset bundles a named format's data-type bitfield and per-type step
// list.
type Preset struct {
	Name      string
	DataTypes wire.DataType
	// Steps gives one decimation step per set bit in DataTypes, in
	// canonical order (LM, XY, PW, VR, SP, IM).
	Steps []int16
}

// Named presets from §4.11. Each name is the literal format tag the device
// protocol uses; "Full" means step 1, "Half" step 2, "Quarter" step 4.
var table = map[string]Preset{
	"XYFullLMFull": {
		Name:      "XYFullLMFull",
		DataTypes: wire.DataTypeLM | wire.DataTypeXY,
		Steps:     []int16{1, 1},
	},
	"XYQuarterLMHalf": {
		Name:      "XYQuarterLMHalf",
		DataTypes: wire.DataTypeLM | wire.DataTypeXY,
		Steps:     []int16{2, 4},
	},
	"Image": {
		Name:      "Image",
		DataTypes: wire.DataTypeIM,
		Steps:     []int16{1},
	},
	"SubpixelFullLMFull": {
		Name:      "SubpixelFullLMFull",
		DataTypes: wire.DataTypeLM | wire.DataTypeSP,
		Steps:     []int16{1, 1},
	},
}

// Get looks up a preset by its format name.
func Get(name string) (Preset, error) {
	p, ok := table[name]
	if !ok {
		return Preset{}, scanerr.Wrap(scanerr.NotFound, "no such preset: %q", name)
	}
	return p, nil
}

// Names returns every preset name, for listing/help output.
func Names() []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	return out
}

// ToParams builds scan-request parameters from a preset, a target rate, and
// a window's column span, leaving the caller's laser/exposure windows and
// thresholds at their device-default values.
func (p Preset) ToParams(rateHz float64, startCol, endCol int16) session.StartScanningParams {
	return session.StartScanningParams{
		RateHz:    rateHz,
		DataTypes: p.DataTypes,
		StartCol:  startCol,
		EndCol:    endCol,
		Steps:     append([]int16(nil), p.Steps...),
	}
}

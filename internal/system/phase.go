package system

import "github.com/scanworks/scanhead-client/internal/scanerr"

// ElementKind distinguishes what a phase element binds a head to (§3, §4.10).
type ElementKind int

const (
	ElementCamera ElementKind = iota
	ElementLaser
	ElementStrobe
)

// HeadCapability describes the per-head limits phase validation checks
// against: whether the head can host a strobe element at all, and how many
// configuration groups (phase elements, across the whole table) it can be
// bound to (§4.10).
type HeadCapability struct {
	StrobeCapable          bool
	MaxConfigurationGroups int
}

// PhaseElement binds one scan head to a camera, laser, or strobe within a
// phase (§3).
type PhaseElement struct {
	HeadID           uint8
	Kind             ElementKind
	TargetID         uint8 // camera or laser id
	StrobeDurationUS int32
}

// CapabilityLookup resolves a registered head's phase-table capability.
type CapabilityLookup func(headID uint8) (HeadCapability, bool)

// PhaseTable is an ordered list of phases, each an ordered list of elements,
// built incrementally with AddPhase/AddPhaseElement (§4.10). Cardinality is
// enforced as elements are added: at most 2 strobe elements per head per
// phase, and at most MaxConfigurationGroups elements total for any one head
// across the whole table (§8 property 9).
type PhaseTable struct {
	capability CapabilityLookup
	phases     [][]PhaseElement
	headTotal  map[uint8]int
}

// NewPhaseTable builds an empty phase table; capability resolves each head's
// strobe eligibility and per-head element ceiling.
func NewPhaseTable(capability CapabilityLookup) *PhaseTable {
	return &PhaseTable{capability: capability, headTotal: make(map[uint8]int)}
}

// AddPhase appends a new empty phase, which becomes the target of the next
// AddPhaseElement calls.
func (t *PhaseTable) AddPhase() {
	t.phases = append(t.phases, nil)
}

// AddPhaseElement appends an element to the last added phase, validating the
// head is registered, strobe elements only target strobe-capable heads, and
// both the per-phase strobe limit and the table-wide per-head ceiling hold
// (§4.10, §8 property 9).
func (t *PhaseTable) AddPhaseElement(el PhaseElement) error {
	if len(t.phases) == 0 {
		return scanerr.Wrap(scanerr.InvalidArgument, "no phase to add to; call AddPhase first")
	}
	capa, ok := t.capability(el.HeadID)
	if !ok {
		return scanerr.Wrap(scanerr.NotFound, "head %d is not registered", el.HeadID)
	}
	if el.Kind == ElementStrobe {
		if !capa.StrobeCapable {
			return scanerr.Wrap(scanerr.InvalidArgument, "head %d is not strobe-capable", el.HeadID)
		}
		strobes := 0
		for _, e := range t.phases[len(t.phases)-1] {
			if e.HeadID == el.HeadID && e.Kind == ElementStrobe {
				strobes++
			}
		}
		if strobes >= 2 {
			return scanerr.Wrap(scanerr.InvalidArgument, "head %d already has 2 strobe elements in this phase", el.HeadID)
		}
	}
	if capa.MaxConfigurationGroups > 0 && t.headTotal[el.HeadID]+1 > capa.MaxConfigurationGroups {
		return scanerr.Wrap(scanerr.InvalidArgument, "head %d would exceed its %d configuration-group limit", el.HeadID, capa.MaxConfigurationGroups)
	}

	last := len(t.phases) - 1
	t.phases[last] = append(t.phases[last], el)
	t.headTotal[el.HeadID]++
	return nil
}

// NumPhases returns the number of phases in the table.
func (t *PhaseTable) NumPhases() int { return len(t.phases) }

// Phase returns the elements assigned to phase i.
func (t *PhaseTable) Phase(i int) []PhaseElement { return t.phases[i] }

// HeadIDs returns every distinct head ID named across all phases.
func (t *PhaseTable) HeadIDs() []uint8 {
	seen := make(map[uint8]bool)
	var out []uint8
	for _, phase := range t.phases {
		for _, e := range phase {
			if !seen[e.HeadID] {
				seen[e.HeadID] = true
				out = append(out, e.HeadID)
			}
		}
	}
	return out
}

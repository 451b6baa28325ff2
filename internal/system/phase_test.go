package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/scanerr"
)

func capLookup(caps map[uint8]HeadCapability) CapabilityLookup {
	return func(headID uint8) (HeadCapability, bool) {
		c, ok := caps[headID]
		return c, ok
	}
}

func TestPhaseTable_RejectsElementWithoutPhase(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{1: {}}))
	err := tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera})
	require.Error(t, err)
}

func TestPhaseTable_RejectsUnregisteredHead(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{}))
	tbl.AddPhase()
	err := tbl.AddPhaseElement(PhaseElement{HeadID: 9, Kind: ElementCamera})
	require.ErrorIs(t, err, scanerr.NotFound)
}

func TestPhaseTable_BuildsDisjointAssignment(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{
		1: {MaxConfigurationGroups: 4},
		2: {MaxConfigurationGroups: 4},
	}))
	tbl.AddPhase()
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera, TargetID: 0}))
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 2, Kind: ElementCamera, TargetID: 0}))
	tbl.AddPhase()
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera, TargetID: 1}))
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 2, Kind: ElementCamera, TargetID: 1}))

	require.Equal(t, 2, tbl.NumPhases())
	require.ElementsMatch(t, []uint8{1, 2}, tbl.HeadIDs())
}

func TestPhaseTable_RejectsStrobeOnNonStrobeCapableHead(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{1: {StrobeCapable: false, MaxConfigurationGroups: 4}}))
	tbl.AddPhase()
	err := tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementStrobe})
	require.ErrorIs(t, err, scanerr.InvalidArgument)
}

func TestPhaseTable_RejectsThirdStrobeInSamePhase(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{1: {StrobeCapable: true, MaxConfigurationGroups: 10}}))
	tbl.AddPhase()
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementStrobe}))
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementStrobe}))

	err := tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementStrobe})
	require.ErrorIs(t, err, scanerr.InvalidArgument)
}

func TestPhaseTable_RejectsExceedingMaxConfigurationGroups(t *testing.T) {
	tbl := NewPhaseTable(capLookup(map[uint8]HeadCapability{1: {MaxConfigurationGroups: 2}}))
	tbl.AddPhase()
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera, TargetID: 0}))
	tbl.AddPhase()
	require.NoError(t, tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera, TargetID: 1}))

	tbl.AddPhase()
	err := tbl.AddPhaseElement(PhaseElement{HeadID: 1, Kind: ElementCamera, TargetID: 2})
	require.ErrorIs(t, err, scanerr.InvalidArgument)
}

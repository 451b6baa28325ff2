package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/wire"
)

func frag(partNum uint8, numParts uint16, ts uint64) *wire.DataFragment {
	return &wire.DataFragment{
		HeadID: 1, CameraID: 2, LaserID: 0,
		PartNum: partNum, NumParts: numParts, Timestamp: ts,
		Contents: wire.DataTypeXY,
		StartCol: 0, EndCol: 7,
		Layouts: map[wire.DataType]wire.Layout{},
		Payload: []byte{},
	}
}

func TestFragmentSetTable_CompletesAfterAllParts(t *testing.T) {
	now := time.Unix(0, 0)
	tbl := NewFragmentSetTable(time.Second)

	_, done, err := tbl.Add(frag(0, 2, 1000), now)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 1, tbl.Pending())

	fs, done, err := tbl.Add(frag(1, 2, 1000), now)
	require.NoError(t, err)
	require.True(t, done)
	require.NotNil(t, fs)
	require.Equal(t, 0, tbl.Pending())
}

func TestFragmentSet_RejectsMismatchedTimestamp(t *testing.T) {
	now := time.Unix(0, 0)
	fs := NewFragmentSet(frag(0, 2, 1000), now)
	require.False(t, fs.Complete())

	err := fs.Add(frag(1, 2, 9999))
	require.Error(t, err)
}

func TestFragmentSetTable_SinglePartCompletesImmediately(t *testing.T) {
	now := time.Unix(0, 0)
	tbl := NewFragmentSetTable(time.Second)

	fs, done, err := tbl.Add(frag(0, 1, 1000), now)
	require.NoError(t, err)
	require.True(t, done)
	require.NotNil(t, fs)
}

func TestFragmentSetTable_EvictsStaleIncompleteSets(t *testing.T) {
	start := time.Unix(0, 0)
	tbl := NewFragmentSetTable(time.Second)

	_, _, err := tbl.Add(frag(0, 2, 1000), start)
	require.NoError(t, err)

	dropped := tbl.EvictStale(start.Add(2 * time.Second))
	require.Equal(t, 1, dropped)
	require.Equal(t, 0, tbl.Pending())
}

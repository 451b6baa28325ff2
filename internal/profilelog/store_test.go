package profilelog

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/wire"
)

type recordIdentity struct {
	HeadID, CameraID, LaserID uint8
	ValidPointCount           int
}

func identityOf(r Record) recordIdentity {
	return recordIdentity{HeadID: r.HeadID, CameraID: r.CameraID, LaserID: r.LaserID, ValidPointCount: r.ValidPointCount}
}

func TestStore_InsertAndRecentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	p := &profile.Profile{
		Source:          wire.Source{HeadID: 1, CameraID: 2, LaserID: 0},
		Timestamp:       1000,
		ValidPointCount: 2,
	}
	p.Points[0].X, p.Points[0].Y = 1.5, -2.5
	p.Points[1].X, p.Points[1].Y = math.NaN(), math.NaN()

	now := time.Unix(1700000000, 0)
	require.NoError(t, store.Insert(p, now))

	recs, err := store.Recent(p.Source, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	wantIdentity := recordIdentity{HeadID: 1, CameraID: 2, LaserID: 0, ValidPointCount: 2}
	if diff := cmp.Diff(wantIdentity, identityOf(recs[0])); diff != "" {
		t.Fatalf("recorded profile identity mismatch (-want +got):\n%s", diff)
	}
	require.InDelta(t, 1.5, recs[0].Points[0].X, 1e-9)
	require.InDelta(t, -2.5, recs[0].Points[0].Y, 1e-9)
	require.True(t, math.IsNaN(recs[0].Points[1].X))
}

func TestStore_RecentFiltersBySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.Insert(&profile.Profile{Source: wire.Source{HeadID: 1, CameraID: 0}, Timestamp: 1}, now))
	require.NoError(t, store.Insert(&profile.Profile{Source: wire.Source{HeadID: 2, CameraID: 0}, Timestamp: 2}, now))

	recs, err := store.Recent(wire.Source{HeadID: 1, CameraID: 0}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

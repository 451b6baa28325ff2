package profile

import (
	"time"

	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// FragmentSet accumulates the parts of one profile's data fragments, keyed by
// (source, timestamp), until every declared part has arrived (§4.5).
type FragmentSet struct {
	source    wire.Source
	timestamp uint64
	numParts  uint16

	parts     map[uint8]*wire.DataFragment
	createdAt time.Time
}

// NewFragmentSet starts a set from its first fragment.
func NewFragmentSet(first *wire.DataFragment, now time.Time) *FragmentSet {
	fs := &FragmentSet{
		source:    first.Source(),
		timestamp: first.Timestamp,
		numParts:  first.NumParts,
		parts:     make(map[uint8]*wire.DataFragment, first.NumParts),
		createdAt: now,
	}
	fs.parts[first.PartNum] = first
	return fs
}

// Add inserts another fragment into the set. It refuses fragments whose
// source or timestamp differ from the set's own (§4.5) and duplicate parts.
func (fs *FragmentSet) Add(f *wire.DataFragment) error {
	if f.Source() != fs.source {
		return scanerr.Wrap(scanerr.InvalidArgument, "fragment source %+v does not match set source %+v", f.Source(), fs.source)
	}
	if f.Timestamp != fs.timestamp {
		return scanerr.Wrap(scanerr.InvalidArgument, "fragment timestamp %d does not match set timestamp %d", f.Timestamp, fs.timestamp)
	}
	if _, dup := fs.parts[f.PartNum]; dup {
		return scanerr.Wrap(scanerr.InvalidArgument, "duplicate fragment part %d", f.PartNum)
	}
	fs.parts[f.PartNum] = f
	return nil
}

// Complete reports whether every part 0..numParts-1 has arrived.
func (fs *FragmentSet) Complete() bool {
	return len(fs.parts) == int(fs.numParts)
}

// Age reports how long this set has been accumulating as of now.
func (fs *FragmentSet) Age(now time.Time) time.Duration {
	return now.Sub(fs.createdAt)
}

// Source returns the (head, camera, laser) this set belongs to.
func (fs *FragmentSet) Source() wire.Source {
	return fs.source
}

// Parts returns the accumulated fragments ordered by part number. Only valid
// once Complete returns true.
func (fs *FragmentSet) Parts() []*wire.DataFragment {
	out := make([]*wire.DataFragment, fs.numParts)
	for num, f := range fs.parts {
		out[num] = f
	}
	return out
}

// FragmentSetKey identifies one in-flight fragment set.
type FragmentSetKey struct {
	Source    wire.Source
	Timestamp uint64
}

// FragmentSetTable tracks in-flight fragment sets across sources, evicting
// stale incomplete sets so a lost fragment cannot leak memory forever.
type FragmentSetTable struct {
	maxAge time.Duration
	sets   map[FragmentSetKey]*FragmentSet
}

// NewFragmentSetTable builds a table that evicts sets older than maxAge.
func NewFragmentSetTable(maxAge time.Duration) *FragmentSetTable {
	return &FragmentSetTable{maxAge: maxAge, sets: make(map[FragmentSetKey]*FragmentSet)}
}

// Add folds one newly decoded fragment into its set, creating the set if
// this is the first part seen for its (source, timestamp). It returns the
// completed set and true once every part has arrived, removing it from the
// table in the same call.
func (t *FragmentSetTable) Add(f *wire.DataFragment, now time.Time) (*FragmentSet, bool, error) {
	key := FragmentSetKey{Source: f.Source(), Timestamp: f.Timestamp}

	fs, ok := t.sets[key]
	if !ok {
		if f.NumParts == 1 {
			return NewFragmentSet(f, now), true, nil
		}
		t.sets[key] = NewFragmentSet(f, now)
		return nil, false, nil
	}

	if err := fs.Add(f); err != nil {
		return nil, false, err
	}
	if fs.Complete() {
		delete(t.sets, key)
		return fs, true, nil
	}
	return nil, false, nil
}

// EvictStale removes incomplete sets older than the table's maxAge and
// reports how many were dropped, so callers can track lost fragments.
func (t *FragmentSetTable) EvictStale(now time.Time) int {
	dropped := 0
	for key, fs := range t.sets {
		if fs.Age(now) > t.maxAge {
			delete(t.sets, key)
			dropped++
		}
	}
	return dropped
}

// Pending reports how many fragment sets are currently in flight.
func (t *FragmentSetTable) Pending() int {
	return len(t.sets)
}

// Package profilelog is an optional, off-the-hot-path recorder: it persists
// assembled profiles to a local sqlite database for later replay or
// offline analysis. Nothing in internal/head, internal/session, or
// internal/system imports this package — recording is strictly opt-in,
// wired up only by cmd/profile-recorder.
package profilelog

import (
	"bytes"
	"database/sql"
	"embed"
	"encoding/binary"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/scanworks/scanhead-client/internal/wire"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists assembled profiles to a sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.InvalidArgument, "open sqlite database %q: %v", path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return scanerr.Wrap(scanerr.InvalidArgument, "load embedded migrations: %v", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return scanerr.Wrap(scanerr.InvalidArgument, "init sqlite migration driver: %v", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return scanerr.Wrap(scanerr.InvalidArgument, "init migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return scanerr.Wrap(scanerr.InvalidArgument, "apply migrations: %v", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert records one assembled profile.
func (s *Store) Insert(p *profile.Profile, now time.Time) error {
	blob := encodePoints(p)
	_, err := s.db.Exec(
		`INSERT INTO profiles (head_id, camera_id, laser_id, timestamp_ns, valid_point_count, points_blob, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Source.HeadID, p.Source.CameraID, p.Source.LaserID, p.Timestamp, p.ValidPointCount, blob, now.UnixNano(),
	)
	if err != nil {
		return scanerr.Wrap(scanerr.InvalidArgument, "insert profile: %v", err)
	}
	return nil
}

// Record is one recorded profile row.
type Record struct {
	HeadID, CameraID, LaserID uint8
	TimestampNS               uint64
	ValidPointCount           int
	RecordedAt                time.Time
	Points                    [profile.RawLen]struct{ X, Y float64 }
}

// Recent returns the most recently recorded profiles for one source,
// newest first, bounded by limit.
func (s *Store) Recent(source wire.Source, limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT head_id, camera_id, laser_id, timestamp_ns, valid_point_count, points_blob, recorded_at
		 FROM profiles WHERE head_id = ? AND camera_id = ? AND laser_id = ?
		 ORDER BY timestamp_ns DESC LIMIT ?`,
		source.HeadID, source.CameraID, source.LaserID, limit,
	)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.InvalidArgument, "query recent profiles: %v", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var blob []byte
		var recordedAtNS int64
		if err := rows.Scan(&r.HeadID, &r.CameraID, &r.LaserID, &r.TimestampNS, &r.ValidPointCount, &blob, &recordedAtNS); err != nil {
			return nil, scanerr.Wrap(scanerr.InvalidArgument, "scan profile row: %v", err)
		}
		r.RecordedAt = time.Unix(0, recordedAtNS)
		decodePoints(blob, &r)
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodePoints(p *profile.Profile) []byte {
	var buf bytes.Buffer
	buf.Grow(profile.RawLen * 16)
	for _, pt := range p.Points {
		binary.Write(&buf, binary.BigEndian, math.Float64bits(pt.X))
		binary.Write(&buf, binary.BigEndian, math.Float64bits(pt.Y))
	}
	return buf.Bytes()
}

func decodePoints(blob []byte, r *Record) {
	for i := 0; i < profile.RawLen && i*16+16 <= len(blob); i++ {
		x := math.Float64frombits(binary.BigEndian.Uint64(blob[i*16 : i*16+8]))
		y := math.Float64frombits(binary.BigEndian.Uint64(blob[i*16+8 : i*16+16]))
		r.Points[i].X = x
		r.Points[i].Y = y
	}
}

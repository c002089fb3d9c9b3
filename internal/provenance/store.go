// Package provenance records every input file the stream layer opens, so a
// processing run can later be traced back to the exact chunk files it
// consumed.
package provenance

import (
	"database/sql"
	"fmt"
	"time"

	"telemux/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS inputs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	role TEXT NOT NULL,
	sb_id INTEGER NOT NULL,
	obs_id INTEGER NOT NULL,
	opened_at_utc_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inputs_run ON inputs(sb_id, obs_id);
`

// Input is one recorded chunk file open.
type Input struct {
	Path     string
	Role     domain.StreamRole
	SBID     uint64
	ObsID    uint64
	OpenedAt time.Time
}

// Store is an append-only sqlite register of opened input files. It
// satisfies the stream layer's Recorder interface.
type Store struct {
	db *sql.DB
}

// Open creates or opens the register at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init provenance schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordInput registers one opened chunk file.
func (s *Store) RecordInput(path string, role domain.StreamRole, sbID, obsID uint64) error {
	_, err := s.db.Exec(`
INSERT INTO inputs(path, role, sb_id, obs_id, opened_at_utc_ns)
VALUES (?, ?, ?, ?, ?)`,
		path, string(role), int64(sbID), int64(obsID), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("record input %s: %w", path, err)
	}
	return nil
}

// Inputs returns every recorded input in open order.
func (s *Store) Inputs() ([]Input, error) {
	rows, err := s.db.Query(`SELECT path, role, sb_id, obs_id, opened_at_utc_ns FROM inputs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Input
	for rows.Next() {
		var item Input
		var role string
		var sbID, obsID, openedAt int64
		if err := rows.Scan(&item.Path, &role, &sbID, &obsID, &openedAt); err != nil {
			return nil, err
		}
		item.Role = domain.StreamRole(role)
		item.SBID = uint64(sbID)
		item.ObsID = uint64(obsID)
		item.OpenedAt = time.Unix(0, openedAt).UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

// CountByRole returns how many inputs of one role were recorded.
func (s *Store) CountByRole(role domain.StreamRole) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM inputs WHERE role=?`, string(role)).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package history keeps a sqlite ledger of finalized scans. The per-target
// manifest file only remembers the latest scan; the ledger is what makes the
// tree hash useful for change detection across scans.
package history

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"treescope/pkg/storage"
)

type DB struct {
	sql *sql.DB
}

// Run is one finalized scan as recorded in the ledger.
type Run struct {
	TargetID      uint64    `json:"target_id"`
	Name          string    `json:"name"`
	TreeHash      string    `json:"tree_hash"`
	ScannedAt     time.Time `json:"scanned_at"`
	ScanDuration  float64   `json:"scan_duration_secs"`
	InstanceCount uint64    `json:"instance_count"`
	ScriptCount   uint64    `json:"script_count"`
	RemoteCount   uint64    `json:"remote_count"`
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS scan_runs (
  id             INTEGER PRIMARY KEY,
  target_id      INTEGER NOT NULL,
  name           TEXT NOT NULL,
  tree_hash      TEXT NOT NULL,
  scanned_at     DATETIME NOT NULL,
  duration_secs  REAL NOT NULL,
  instance_count INTEGER NOT NULL,
  script_count   INTEGER NOT NULL,
  remote_count   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_target ON scan_runs(target_id, scanned_at);
	`); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Record appends a finalized scan to the ledger and reports whether the tree
// hash changed relative to the target's previous run. The first run for a
// target never counts as a change.
func (d *DB) Record(ctx context.Context, m *storage.GameManifest) (changed bool, err error) {
	var prevHash string
	row := d.sql.QueryRowContext(ctx,
		"SELECT tree_hash FROM scan_runs WHERE target_id = ? ORDER BY scanned_at DESC, id DESC LIMIT 1", m.TargetID)
	switch err := row.Scan(&prevHash); err {
	case nil:
		changed = prevHash != m.TreeHash
	case sql.ErrNoRows:
		// First scan of this target.
	default:
		return false, err
	}

	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO scan_runs(target_id, name, tree_hash, scanned_at, duration_secs, instance_count, script_count, remote_count)
		 VALUES(?,?,?,?,?,?,?,?)`,
		m.TargetID, m.Name, m.TreeHash, m.ScannedAt.UTC().Format(time.RFC3339Nano),
		m.ScanDuration, m.InstanceCount, m.ScriptCount, m.RemoteCount)
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Runs lists the recorded scans for a target, newest first.
func (d *DB) Runs(ctx context.Context, targetID uint64, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT target_id, name, tree_hash, scanned_at, duration_secs, instance_count, script_count, remote_count
		 FROM scan_runs WHERE target_id = ? ORDER BY scanned_at DESC, id DESC LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var scannedAt string
		if err := rows.Scan(&r.TargetID, &r.Name, &r.TreeHash, &scannedAt,
			&r.ScanDuration, &r.InstanceCount, &r.ScriptCount, &r.RemoteCount); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, scannedAt); perr == nil {
			r.ScannedAt = t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

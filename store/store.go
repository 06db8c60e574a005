// Package store persists reconciled transfer schedules in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/notargets/wellpart/transfer"
)

const schemaVersion = "1"

// ErrRunNotFound is returned when a run id has no stored schedule
var ErrRunNotFound = errors.New("run not found")

// Run describes one partitioning pass
type Run struct {
	ID        string
	NumRanks  int
	Root      int
	Strategy  string
	CreatedAt time.Time
}

// Store keeps export and import lists per run and rank
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			num_ranks INTEGER NOT NULL,
			root INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS exports (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			cell INTEGER NOT NULL,
			dest INTEGER NOT NULL,
			attr INTEGER NOT NULL,
			PRIMARY KEY (run_id, rank, cell, dest, attr)
		);
		CREATE TABLE IF NOT EXISTS imports (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			cell INTEGER NOT NULL,
			owner INTEGER NOT NULL,
			attr INTEGER NOT NULL,
			tag INTEGER NOT NULL,
			PRIMARY KEY (run_id, rank, seq)
		);
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', '` + schemaVersion + `');
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records the schedule of one rank, replacing what was stored for it
func (s *Store) Save(ctx context.Context, run Run, rank int,
	exports []transfer.ExportEntry, imports []transfer.ImportEntry) error {
	return s.SaveRun(ctx, run, []RankLists{{Rank: rank, Exports: exports, Imports: imports}})
}

// RankLists holds the lists of one rank for SaveRun
type RankLists struct {
	Rank    int
	Exports []transfer.ExportEntry
	Imports []transfer.ImportEntry
}

// SaveRun records the schedules of several ranks in a single transaction:
// either every rank is stored or none is
func (s *Store) SaveRun(ctx context.Context, run Run, ranks []RankLists) error {
	for _, rl := range ranks {
		if rl.Rank < 0 || rl.Rank >= run.NumRanks {
			return fmt.Errorf("rank %d outside run %s of %d ranks", rl.Rank, run.ID, run.NumRanks)
		}
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, num_ranks, root, strategy, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.NumRanks, run.Root, run.Strategy, run.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	for _, rl := range ranks {
		if err := saveRank(ctx, tx, run.ID, rl); err != nil {
			return fmt.Errorf("rank %d: %w", rl.Rank, err)
		}
	}
	return tx.Commit()
}

func saveRank(ctx context.Context, tx *sql.Tx, runID string, rl RankLists) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM exports WHERE run_id = ? AND rank = ?`,
		runID, rl.Rank); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE run_id = ? AND rank = ?`,
		runID, rl.Rank); err != nil {
		return err
	}

	for _, e := range rl.Exports {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO exports (run_id, rank, cell, dest, attr)
			VALUES (?, ?, ?, ?, ?)
		`, runID, rl.Rank, e.Cell, e.Rank, int(e.Attr)); err != nil {
			return fmt.Errorf("failed to insert export %s: %w", e, err)
		}
	}
	for i, e := range rl.Imports {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO imports (run_id, rank, seq, cell, owner, attr, tag)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, rl.Rank, i, e.Cell, e.Rank, int(e.Attr), e.Tag); err != nil {
			return fmt.Errorf("failed to insert import %s: %w", e, err)
		}
	}
	return nil
}

// Load returns the stored lists of rank in run. Exports come back sorted,
// imports in the order they were saved.
func (s *Store) Load(ctx context.Context, runID string, rank int) ([]transfer.ExportEntry, []transfer.ImportEntry, error) {
	var numRanks int
	err := s.db.QueryRowContext(ctx, `SELECT num_ranks FROM runs WHERE id = ?`, runID).Scan(&numRanks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, nil, err
	}
	if rank < 0 || rank >= numRanks {
		return nil, nil, fmt.Errorf("rank %d outside run %s of %d ranks", rank, runID, numRanks)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cell, dest, attr FROM exports
		WHERE run_id = ? AND rank = ?
		ORDER BY cell, dest, attr
	`, runID, rank)
	if err != nil {
		return nil, nil, err
	}
	var exports []transfer.ExportEntry
	for rows.Next() {
		var e transfer.ExportEntry
		var attr int
		if err := rows.Scan(&e.Cell, &e.Rank, &attr); err != nil {
			rows.Close()
			return nil, nil, err
		}
		e.Attr = transfer.Attribute(attr)
		exports = append(exports, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT cell, owner, attr, tag FROM imports
		WHERE run_id = ? AND rank = ?
		ORDER BY seq
	`, runID, rank)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var imports []transfer.ImportEntry
	for rows.Next() {
		var e transfer.ImportEntry
		var attr int
		if err := rows.Scan(&e.Cell, &e.Rank, &attr, &e.Tag); err != nil {
			return nil, nil, err
		}
		e.Attr = transfer.Attribute(attr)
		imports = append(imports, e)
	}
	return exports, imports, rows.Err()
}

// Runs lists the stored runs, newest first
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, num_ranks, root, strategy, created_at FROM runs
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.NumRanks, &r.Root, &r.Strategy, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and all of its lists
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

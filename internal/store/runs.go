// Package store keeps a catalogue of merge runs in SQLite: what was merged,
// the blobs involved, the report counts and every recorded mismatch.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/merge"
	"github.com/FocuswithJustin/JuniperScore/core/sqlite"
)

// Injectable functions for testing.
var (
	newID = uuid.NewString
	now   = time.Now
)

// schema is applied by Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		created_at        TEXT NOT NULL,
		format            TEXT NOT NULL,
		primary_name      TEXT NOT NULL,
		secondary_name    TEXT NOT NULL DEFAULT '',
		primary_sha256    TEXT NOT NULL DEFAULT '',
		secondary_sha256  TEXT NOT NULL DEFAULT '',
		output_sha256     TEXT NOT NULL DEFAULT '',
		output_blake3     TEXT NOT NULL DEFAULT '',
		group_count       INTEGER NOT NULL,
		staves_removed    INTEGER NOT NULL,
		staff_def_removed INTEGER NOT NULL,
		mismatch_count    INTEGER NOT NULL,
		duration_ms       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at)`,
	`CREATE TABLE IF NOT EXISTS mismatches (
		run_id      TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		path        TEXT NOT NULL,
		measure     INTEGER NOT NULL,
		position    INTEGER NOT NULL,
		first_text  TEXT NOT NULL DEFAULT '',
		second_text TEXT NOT NULL DEFAULT '',
		detail      TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
}

// Run is one catalogued merge.
type Run struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	Format          string           `json:"format"`
	Primary         string           `json:"primary"`
	Secondary       string           `json:"secondary,omitempty"`
	PrimarySHA256   string           `json:"primary_sha256,omitempty"`
	SecondarySHA256 string           `json:"secondary_sha256,omitempty"`
	OutputSHA256    string           `json:"output_sha256,omitempty"`
	OutputBLAKE3    string           `json:"output_blake3,omitempty"`
	Groups          int              `json:"groups"`
	StavesRemoved   int              `json:"staves_removed"`
	StaffDefRemoved bool             `json:"staff_def_removed"`
	MismatchCount   int              `json:"mismatch_count"`
	Duration        time.Duration    `json:"duration_ns"`
	Mismatches      []merge.Mismatch `json:"mismatches,omitempty"`
}

// RunStore is the SQLite-backed run catalogue.
type RunStore struct {
	db *sql.DB
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Open opens (creating if needed) the catalogue database at path and
// migrates it.
func Open(ctx context.Context, path string) (*RunStore, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Migrate creates the tables.
func (s *RunStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrating run catalogue")
		}
	}
	return nil
}

// Record stores run and its mismatches in one transaction. An empty ID is
// replaced by a new UUID and a zero CreatedAt by the current time; the
// assigned values are written back into run.
func (s *RunStore) Record(ctx context.Context, run *Run) error {
	if run == nil || run.Primary == "" || run.Format == "" {
		return errors.Wrap(errors.ErrInvalidInput, "run needs a primary source and a format")
	}
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now().UTC()
	}
	run.MismatchCount = len(run.Mismatches)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id, created_at, format, primary_name, secondary_name,
		primary_sha256, secondary_sha256, output_sha256, output_blake3,
		group_count, staves_removed, staff_def_removed, mismatch_count, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Format, run.Primary, run.Secondary,
		run.PrimarySHA256, run.SecondarySHA256, run.OutputSHA256, run.OutputBLAKE3,
		run.Groups, run.StavesRemoved, boolInt(run.StaffDefRemoved), run.MismatchCount,
		run.Duration.Milliseconds())
	if err != nil {
		return errors.Wrapf(err, "recording run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mismatches
		(run_id, seq, kind, path, measure, position, first_text, second_text, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing mismatch insert")
	}
	defer stmt.Close()
	for i, m := range run.Mismatches {
		if _, err := stmt.ExecContext(ctx, run.ID, i, string(m.Kind), m.Path, m.Measure, m.Position,
			m.First, m.Second, m.Detail); err != nil {
			return errors.Wrapf(err, "recording mismatch %d of run %s", i, run.ID)
		}
	}
	return tx.Commit()
}

const runColumns = `id, created_at, format, primary_name, secondary_name, primary_sha256,
	secondary_sha256, output_sha256, output_blake3, group_count, staves_removed,
	staff_def_removed, mismatch_count, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r         Run
		created   string
		defRemove int
		ms        int64
	)
	if err := row.Scan(&r.ID, &created, &r.Format, &r.Primary, &r.Secondary, &r.PrimarySHA256,
		&r.SecondarySHA256, &r.OutputSHA256, &r.OutputBLAKE3, &r.Groups, &r.StavesRemoved,
		&defRemove, &r.MismatchCount, &ms); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, errors.NewParse("run", r.ID, "bad created_at "+created)
	}
	r.CreatedAt = t
	r.StaffDefRemoved = defRemove != 0
	r.Duration = time.Duration(ms) * time.Millisecond
	return &r, nil
}

// Get returns a run with its mismatches in recorded order.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading run %s", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, path, measure, position, first_text, second_text, detail
		FROM mismatches WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "loading mismatches of run %s", id)
	}
	defer rows.Close()
	for rows.Next() {
		var m merge.Mismatch
		var kind string
		if err := rows.Scan(&kind, &m.Path, &m.Measure, &m.Position, &m.First, &m.Second, &m.Detail); err != nil {
			return nil, err
		}
		m.Kind = merge.MismatchKind(kind)
		run.Mismatches = append(run.Mismatches, m)
	}
	return run, rows.Err()
}

// List returns the most recent runs first, without mismatches. A limit of
// zero or less means 50.
func (s *RunStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and its mismatches.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("run", id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/auditor-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	dry              INTEGER NOT NULL DEFAULT 0,
	item_ids         TEXT,
	item_count       INTEGER NOT NULL DEFAULT 0,
	fix_counts       TEXT,
	duplicate_titles TEXT,
	summary          TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at      DATETIME
);

CREATE TABLE IF NOT EXISTS run_entries (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	item_id TEXT NOT NULL,
	entry   TEXT NOT NULL,
	PRIMARY KEY (run_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, dry, item_ids, item_count, fix_counts, duplicate_titles, summary, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			item_count = excluded.item_count,
			fix_counts = excluded.fix_counts,
			duplicate_titles = excluded.duplicate_titles,
			summary = excluded.summary,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		run.ID, string(run.Status), run.Dry, cols.itemIDs, run.ItemCount, cols.fixCounts, cols.duplicates,
		run.Summary, run.Error, run.StartedAt.UTC(), nullTime(run.FinishedAt),
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

const sqliteRunColumns = `id, status, dry, item_ids, item_count, fix_counts, duplicate_titles, summary, error, started_at, finished_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveEntries(ctx context.Context, runID string, entries []*model.ReportEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save entries")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal entry %s", entry.ItemID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_entries (run_id, item_id, entry) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, item_id) DO UPDATE SET entry = excluded.entry`,
			runID, entry.ItemID, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: save entry %s", entry.ItemID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit entries")
}

func (s *SQLiteStore) ListEntries(ctx context.Context, runID string) ([]model.ReportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM run_entries WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list entries %s", runID)
	}
	defer rows.Close()

	var entries []model.ReportEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		var entry model.ReportEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entry")
		}
		entries = append(entries, entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var (
		r          model.Run
		cols       runColumns
		itemIDs    sql.NullString
		fixCounts  sql.NullString
		duplicates sql.NullString
		finished   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Status, &r.Dry, &itemIDs, &r.ItemCount, &fixCounts, &duplicates,
		&r.Summary, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	cols.itemIDs = []byte(itemIDs.String)
	cols.fixCounts = []byte(fixCounts.String)
	cols.duplicates = []byte(duplicates.String)
	if err := cols.decode(&r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run")
	}
	if finished.Valid {
		t := finished.Time.UTC()
		r.FinishedAt = &t
	}
	r.StartedAt = r.StartedAt.UTC()
	return &r, nil
}

// runColumns holds the JSON encoded run fields.
type runColumns struct {
	itemIDs    []byte
	fixCounts  []byte
	duplicates []byte
}

func encodeRun(run *model.Run) (runColumns, error) {
	var cols runColumns
	var err error
	if cols.itemIDs, err = json.Marshal(run.ItemIDs); err != nil {
		return cols, err
	}
	if cols.fixCounts, err = json.Marshal(run.FixCounts); err != nil {
		return cols, err
	}
	if cols.duplicates, err = json.Marshal(run.DuplicateTitles); err != nil {
		return cols, err
	}
	return cols, nil
}

func (c runColumns) decode(run *model.Run) error {
	for _, f := range []struct {
		data []byte
		dest any
	}{
		{c.itemIDs, &run.ItemIDs},
		{c.fixCounts, &run.FixCounts},
		{c.duplicates, &run.DuplicateTitles},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dest); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

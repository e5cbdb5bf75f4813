package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/db"
	"github.com/sells-group/auditor-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	dry              BOOLEAN NOT NULL DEFAULT false,
	item_ids         JSONB,
	item_count       INTEGER NOT NULL DEFAULT 0,
	fix_counts       JSONB,
	duplicate_titles JSONB,
	summary          TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS audit_run_entries (
	run_id   TEXT NOT NULL REFERENCES audit_runs(id),
	item_id  TEXT NOT NULL,
	position INTEGER NOT NULL,
	entry    JSONB NOT NULL,
	PRIMARY KEY (run_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_status ON audit_runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_runs_started_at ON audit_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_runs (id, status, dry, item_ids, item_count, fix_counts, duplicate_titles, summary, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			item_count = EXCLUDED.item_count,
			fix_counts = EXCLUDED.fix_counts,
			duplicate_titles = EXCLUDED.duplicate_titles,
			summary = EXCLUDED.summary,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		run.ID, string(run.Status), run.Dry, cols.itemIDs, run.ItemCount, cols.fixCounts, cols.duplicates,
		run.Summary, run.Error, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

const postgresRunColumns = `id, status, dry, item_ids, item_count, fix_counts, duplicate_titles, summary, error, started_at, finished_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM audit_runs WHERE id = $1`, runID)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM audit_runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argN)
	args = append(args, limitOrDefault(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveEntries(ctx context.Context, runID string, entries []*model.ReportEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save entries")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal entry %s", entry.ItemID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO audit_run_entries (run_id, item_id, position, entry) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (run_id, item_id) DO UPDATE SET entry = EXCLUDED.entry, position = EXCLUDED.position`,
			runID, entry.ItemID, i, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: save entry %s", entry.ItemID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit entries")
}

func (s *PostgresStore) ListEntries(ctx context.Context, runID string) ([]model.ReportEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry FROM audit_run_entries WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list entries %s", runID)
	}
	defer rows.Close()

	var entries []model.ReportEntry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		var entry model.ReportEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entry")
		}
		entries = append(entries, entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var (
		r      model.Run
		status string
		cols   runColumns
	)
	err := row.Scan(&r.ID, &status, &r.Dry, &cols.itemIDs, &r.ItemCount, &cols.fixCounts, &cols.duplicates,
		&r.Summary, &r.Error, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = model.RunStatus(status)
	if err := cols.decode(&r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run")
	}
	return &r, nil
}

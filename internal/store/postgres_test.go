package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auditor-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumnNames = []string{
	"id", "status", "dry", "item_ids", "item_count", "fix_counts",
	"duplicate_titles", "summary", "error", "started_at", "finished_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO audit_runs .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("run-1", "complete", true, pgxmock.AnyArg(), 3, pgxmock.AnyArg(), pgxmock.AnyArg(),
			"No items fixed.", "", started, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRun(context.Background(), &model.Run{
		ID:        "run-1",
		Status:    model.RunStatusComplete,
		Dry:       true,
		ItemCount: 3,
		Summary:   "No items fixed.",
		StartedAt: started,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)

	rows := pgxmock.NewRows(runColumnNames).AddRow(
		"run-1", "complete", false, []byte(`["a","b"]`), 2, []byte(`{"tags_result":2}`),
		[]byte(`{"Roads":["a","b"]}`), "2 items updated for tags_result", "", started, &finished,
	)
	mock.ExpectQuery(`SELECT id, status, dry, .* FROM audit_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, []string{"a", "b"}, run.ItemIDs)
	assert.Equal(t, 2, run.FixCounts["tags_result"])
	assert.Equal(t, []string{"a", "b"}, run.DuplicateTitles["Roads"])
	require.NotNil(t, run.FinishedAt)
	assert.True(t, run.FinishedAt.Equal(finished))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM audit_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(runColumnNames).AddRow(
		"run-2", "failed", false, []byte(`null`), 0, []byte(`null`), []byte(`null`),
		"", "auditor: boom", started, nil,
	)
	mock.ExpectQuery(`FROM audit_runs WHERE 1=1 AND status = \$1 ORDER BY started_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 5).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "auditor: boom", runs[0].Error)
	assert.Nil(t, runs[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM audit_runs WHERE 1=1 ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ListRuns(context.Background(), RunFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_run_entries .* ON CONFLICT \(run_id, item_id\)`).
		WithArgs("run-1", "a", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_run_entries`).
		WithArgs("run-1", "b", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveEntries(context.Background(), "run-1", []*model.ReportEntry{{ItemID: "a"}, {ItemID: "b"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEntries_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_run_entries`).
		WithArgs("run-1", "a", 0, pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveEntries(context.Background(), "run-1", []*model.ReportEntry{{ItemID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save entry a")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"entry"}).
		AddRow([]byte(`{"item_id":"a","sgid_name":"SGID.WATER.Lakes"}`)).
		AddRow([]byte(`{"item_id":"b","error":"boom"}`))
	mock.ExpectQuery(`SELECT entry FROM audit_run_entries WHERE run_id = \$1 ORDER BY position`).
		WithArgs("run-1").
		WillReturnRows(rows)

	entries, err := s.ListEntries(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SGID.WATER.Lakes", entries[0].SourceName)
	assert.Equal(t, "boom", entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}

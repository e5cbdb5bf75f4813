package metatable

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/db"
)

// PostgresReader reads a reference table from the SGID database.
type PostgresReader struct {
	pool  db.Pool
	table string
}

// NewPostgresReader returns a reader for table, which may be schema qualified
// ("meta.agolitems").
func NewPostgresReader(pool db.Pool, table string) *PostgresReader {
	return &PostgresReader{pool: pool, table: table}
}

// ReadTable implements Reader. NULL values are read as empty strings.
func (r *PostgresReader) ReadTable(ctx context.Context, fields []string) ([][]string, error) {
	if len(fields) == 0 {
		return nil, eris.New("metatable: no fields requested")
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{strings.ToLower(f)}.Sanitize())
	}
	table := pgx.Identifier(strings.Split(r.table, ".")).Sanitize()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "metatable: query %s", r.table)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		values := make([]string, len(fields))
		dest := make([]any, len(fields))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "metatable: scan %s", r.table)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "metatable: iterate %s", r.table)
	}
	return out, nil
}

// PortalReader reads a reference table hosted on the platform itself.
type PortalReader struct {
	query TableQuerier
	url   string
}

// TableQuerier is the platform call PortalReader depends on.
type TableQuerier interface {
	QueryTable(ctx context.Context, url string, fields []string) ([][]string, error)
}

// NewPortalReader returns a reader for the hosted table at url.
func NewPortalReader(q TableQuerier, url string) *PortalReader {
	return &PortalReader{query: q, url: url}
}

// ReadTable implements Reader.
func (r *PortalReader) ReadTable(ctx context.Context, fields []string) ([][]string, error) {
	rows, err := r.query.QueryTable(ctx, r.url, fields)
	if err != nil {
		return nil, eris.Wrapf(err, "metatable: query hosted table %s", r.url)
	}
	return rows, nil
}

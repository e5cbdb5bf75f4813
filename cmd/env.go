package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auditor-cli/internal/db"
	"github.com/sells-group/auditor-cli/internal/metatable"
	"github.com/sells-group/auditor-cli/internal/store"
	"github.com/sells-group/auditor-cli/pkg/arcgis"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "auditor.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initPortal() *arcgis.Client {
	opts := []arcgis.Option{arcgis.WithRateLimit(cfg.Portal.RateLimit)}
	if mins := cfg.Portal.TokenExpirationMins; mins > 0 {
		opts = append(opts, arcgis.WithTokenExpiration(time.Duration(mins)*time.Minute))
	}
	return arcgis.NewClient(cfg.Portal.URL, cfg.Portal.Username, cfg.Portal.Password, opts...)
}

// initMetatables returns the configured reference tables, SGID first. The
// returned func releases the SGID database pool.
func initMetatables(ctx context.Context, portal metatable.TableQuerier) ([]metatable.Table, func(), error) {
	var tables []metatable.Table
	closeFn := func() {}
	m := cfg.Metatable

	switch {
	case m.SGIDDatabaseURL != "":
		pool, err := db.Connect(ctx, m.SGIDDatabaseURL, nil)
		if err != nil {
			return nil, closeFn, eris.Wrap(err, "connect sgid metatable")
		}
		closeFn = pool.Close
		tables = append(tables, metatable.Table{
			Name:   "sgid",
			Reader: metatable.NewPostgresReader(pool, m.SGIDTable),
			Fields: metatable.SGIDFields,
		})
	case m.SGIDFile != "":
		tables = append(tables, metatable.Table{
			Name:   "sgid",
			Reader: fileReader(m.SGIDFile),
			Fields: metatable.SGIDFields,
		})
	}

	switch {
	case m.AGOLTableURL != "":
		tables = append(tables, metatable.Table{
			Name:   "agol",
			Reader: metatable.NewPortalReader(portal, m.AGOLTableURL),
			Fields: metatable.AGOLFields,
		})
	case m.AGOLFile != "":
		tables = append(tables, metatable.Table{
			Name:   "agol",
			Reader: fileReader(m.AGOLFile),
			Fields: metatable.AGOLFields,
		})
	}

	if len(tables) == 0 {
		return nil, closeFn, eris.New("no metatable configured")
	}
	return tables, closeFn, nil
}

// fileReader picks the reader for a metatable export by extension.
func fileReader(path string) metatable.Reader {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return &metatable.XLSXReader{Path: path}
	}
	return &metatable.CSVReader{Path: path}
}

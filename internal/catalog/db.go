package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"daops/internal/config"
	"daops/internal/timeparam"
)

// insertBatch is the number of rows per multi-value INSERT.
const insertBatch = 200

// DB mirrors the project inventory into a SQLite table and searches it with
// bound parameters.
type DB struct {
	src     *source
	db      *sql.DB
	table   string
	baseDir string
	baseURL string
	group   singleflight.Group
}

func openDB(src *source, p config.Project, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("catalog: project %q: db catalog needs a DSN", src.project)
	}
	if strings.TrimSpace(src.url) == "" {
		return nil, fmt.Errorf("catalog: project %q: no intake catalog URL to mirror", src.project)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	return &DB{
		src:     src,
		db:      db,
		table:   TableName(src.project),
		baseDir: p.BaseDir,
		baseURL: p.DataNodeRoot,
	}, nil
}

// TableName is the mirror table for project: catalog_<project> with
// non-identifier characters replaced by underscores.
func TableName(project string) string {
	var b strings.Builder
	b.WriteString("catalog_")
	for _, r := range strings.ToLower(project) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c *DB) exists(ctx context.Context) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, c.table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("catalog: inspect %s: %w", c.table, err)
	}
	return n > 0, nil
}

// ensure mirrors the inventory once; concurrent callers share the work.
func (c *DB) ensure(ctx context.Context) error {
	_, err, _ := c.group.Do(c.table, func() (any, error) {
		ok, err := c.exists(ctx)
		if err != nil || ok {
			return nil, err
		}
		rows, err := c.src.rows(ctx)
		if err != nil {
			return nil, err
		}
		return nil, c.mirror(ctx, rows)
	})
	return err
}

func (c *DB) mirror(ctx context.Context, rows []Row) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	ddl := fmt.Sprintf(`CREATE TABLE %q (ds_id TEXT NOT NULL, path TEXT NOT NULL, start_time TEXT NOT NULL, end_time TEXT NOT NULL)`, c.table)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("catalog: create %s: %w", c.table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX %q ON %q (ds_id)`, c.table+"_ds_id", c.table)); err != nil {
		return fmt.Errorf("catalog: index %s: %w", c.table, err)
	}

	for lo := 0; lo < len(rows); lo += insertBatch {
		hi := min(lo+insertBatch, len(rows))
		batch := rows[lo:hi]
		args := make([]any, 0, 4*len(batch))
		ph := make([]string, len(batch))
		for i, r := range batch {
			ph[i] = "(?, ?, ?, ?)"
			args = append(args, r.DatasetID, r.Path, r.Start, r.End)
		}
		q := fmt.Sprintf(`INSERT INTO %q (ds_id, path, start_time, end_time) VALUES %s`, c.table, strings.Join(ph, ", "))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("catalog: insert into %s: %w", c.table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	c.src.deps.Log.Info("catalog table created", zap.String("table", c.table), zap.Int("rows", len(rows)))
	return nil
}

func (c *DB) Search(ctx context.Context, ids []string, tf timeparam.Filter) (*Result, error) {
	res := newResult(c.baseDir, c.baseURL)
	if len(ids) == 0 {
		return res, nil
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	lo, hi := tf.Bounds()

	ph := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	q := fmt.Sprintf(`SELECT ds_id, path FROM %q WHERE ds_id IN (%s) AND end_time >= ? AND start_time <= ? ORDER BY rowid`, c.table, ph)
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, lo.String(), hi.String())

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query %s: %w", c.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		res.add(id, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}
	return res, nil
}

func (c *DB) Close() error { return c.db.Close() }

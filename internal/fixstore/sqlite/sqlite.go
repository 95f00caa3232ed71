// Package sqlite serves fix documents from a SQLite (key, doc) table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"daops/internal/config"
	"daops/internal/fixstore"
)

// NewStore opens dsn and checks that the table name is usable.
//
// DSN is passed directly to database/sql, for example:
//
//	"file:fixes.db?mode=ro"
//	"fixes.db"
func NewStore(ctx context.Context, dsn, table string) (*fixstore.SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if err := fixstore.ValidTable(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	q := fmt.Sprintf("SELECT doc FROM %s WHERE key = ?", quote(table))
	return fixstore.NewSQL(db, q), nil
}

func quote(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

func init() {
	fixstore.Register("sqlite", func(ctx context.Context, cfg config.FixStore, _ fixstore.Deps) (fixstore.Store, error) {
		return NewStore(ctx, cfg.DSN, cfg.Table)
	})
}

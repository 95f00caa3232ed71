// Package mssql serves fix documents from a SQL Server (key, doc) table.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"daops/internal/config"
	"daops/internal/fixstore"
)

// newStore is a test hook pointing at NewStore.
var newStore = NewStore

// NewStore validates dsn, opens the pool and pings it.
func NewStore(ctx context.Context, dsn, table string) (*fixstore.SQL, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if err := fixstore.ValidTable(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return fixstore.NewSQL(db, selectDoc(table)), nil
}

func selectDoc(table string) string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE [key] = @p1", msFQN(table))
}

// msFQN brackets each part of a possibly schema-qualified name.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

func init() {
	fixstore.Register("mssql", func(ctx context.Context, cfg config.FixStore, _ fixstore.Deps) (fixstore.Store, error) {
		return newStore(ctx, cfg.DSN, cfg.Table)
	})
}

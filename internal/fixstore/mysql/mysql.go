// Package mysql serves fix documents from a MySQL (key, doc) table.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"daops/internal/config"
	"daops/internal/fixstore"
)

// newStore is a test hook pointing at NewStore.
var newStore = NewStore

// NewStore parses dsn with the driver, opens the pool and pings it.
func NewStore(ctx context.Context, dsn, table string) (*fixstore.SQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if err := fixstore.ValidTable(table); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return fixstore.NewSQL(db, selectDoc(table)), nil
}

func selectDoc(table string) string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE `key` = ?", myFQN(table))
}

func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

func init() {
	fixstore.Register("mysql", func(ctx context.Context, cfg config.FixStore, _ fixstore.Deps) (fixstore.Store, error) {
		return newStore(ctx, cfg.DSN, cfg.Table)
	})
}

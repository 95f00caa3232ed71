package fixstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidTable accepts "table" or "schema.table" made of identifier characters.
func ValidTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("fixstore: invalid table name %q", name)
	}
	return nil
}

// SQL serves documents from a (key, doc) table through database/sql.
type SQL struct {
	db    *sql.DB
	query string
}

// NewSQL wraps db. query selects the doc column with a single bound key
// parameter in the driver's placeholder syntax.
func NewSQL(db *sql.DB, query string) *SQL {
	return &SQL{db: db, query: query}
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, s.query, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fixstore: query: %w", err)
	}
	return doc, nil
}

// DB exposes the underlying handle.
func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Close() error { return s.db.Close() }

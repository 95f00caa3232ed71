// Package postgres serves fix documents from a Postgres (key, doc) table
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"daops/internal/config"
	"daops/internal/fixstore"
)

// Store reads documents with a single-row SELECT per key.
type Store struct {
	pool  *pgxpool.Pool
	query string
}

// NewStore constructs a pool for dsn and pings it.
func NewStore(ctx context.Context, dsn, table string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if err := fixstore.ValidTable(table); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool, query: selectDoc(table)}, nil
}

func selectDoc(table string) string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE key = $1", pgFQN(table))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, s.query, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fixstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	return doc, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// pgIdent quotes an identifier for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.fixes".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func init() {
	fixstore.Register("postgres", func(ctx context.Context, cfg config.FixStore, _ fixstore.Deps) (fixstore.Store, error) {
		return NewStore(ctx, cfg.DSN, cfg.Table)
	})
}

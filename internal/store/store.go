// Package store is the relational engine (C1): authoritative storage for
// code files, symbols, patterns, learnings, links, sessions and tasks. All
// writes that touch more than one table happen inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// CurrentSchemaVersion is the schema version this binary expects. Opening an
// older database runs the intervening migrations; a newer one is rejected.
const CurrentSchemaVersion = 1

// Store is the SQLite-backed relational engine. It owns one *sql.DB and a
// per-file-id lock registry used by the Ingestor to serialize dual-store
// commits (see internal/ingest).
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	fileLocks map[string]*sync.Mutex
}

// Open opens (creating if necessary) the SQLite database at path, enables
// WAL mode and a busy timeout, and applies any pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, dmerrors.StoreError("open database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	s := &Store{db: db, fileLocks: make(map[string]*sync.Mutex)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, dmerrors.StoreError("migrate database", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB. Used by packages that need the same
// connection for a co-located schema, e.g. internal/vectorindex's
// chunk_metadata side-table.
func (s *Store) DB() *sql.DB {
	return s.db
}

// fileLock returns the mutex serializing ingest/delete/read-back for a
// single code_file id, creating it on first use. The registry itself never
// shrinks; an entry is a handful of bytes and the corpus is bounded.
func (s *Store) fileLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.fileLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.fileLocks[id] = m
	}
	return m
}

// WithFileLock runs fn while holding the per-file-id lock for id.
func (s *Store) WithFileLock(id string, fn func() error) error {
	lock := s.fileLock(id)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}
	return nil
}

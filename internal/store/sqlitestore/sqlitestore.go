// Package sqlitestore implements store.Store on top of an embedded,
// pure-Go SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kinlink/kinlink/internal/store/sqlitestore/migrations"
)

// maxReaderConns bounds the reader pool; SQLite's WAL mode lets many
// readers run alongside the one in-flight writer, so this is sized
// for read concurrency rather than for SQLite's single-writer limit.
const maxReaderConns = 8

// pragmaDSN builds the connection string with per-connection pragmas
// baked into the DSN. Pragmas set this way,
// rather than with a one-shot ExecContext, apply to every connection
// database/sql opens from the pool, not just the first.
func pragmaDSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-65536)&_pragma=temp_store(MEMORY)",
		path,
	)
}

// Store is the embedded-SQLite backend. Reads run concurrently across
// the pool's reader connections (WAL readers are never blocked by a
// writer); writes are serialized through writeMu because SQLite only
// truly supports one writer at a time, and database/sql's pool would
// otherwise interleave multi-statement transactions from different
// goroutines.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open creates or opens the database at path, applies pragmas, and runs
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", pragmaDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(maxReaderConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping %s: %w", path, err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrating: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, serialized against other writers,
// committing on success and rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	committed = true
	return nil
}

// Backup copies the live database to dst using SQLite's VACUUM INTO,
// which produces a consistent snapshot without blocking readers.
func (s *Store) Backup(ctx context.Context, dst string) error {
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst)
	if err != nil {
		return fmt.Errorf("sqlitestore: backup to %s: %w", dst, err)
	}
	return nil
}

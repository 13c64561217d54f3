// Package sqlite implements the ledger storage interfaces over a single
// SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/leaselog/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage/integrity"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides a SQLite-backed store implementing the ledger storage
// interfaces.
//
// A single SQLite file holds both the event journal and the lease identity
// registry so a LeaseCreated append and its registry row commit in one
// transaction.
type Store struct {
	sqlDB   *sql.DB
	keyring *integrity.Keyring
}

// Open opens a ledger SQLite store at the provided path and applies bundled
// migrations. The keyring signs every appended event.
func Open(path string, keyring *integrity.Keyring) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if keyring == nil {
		return nil, fmt.Errorf("event integrity keyring is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// Sequence assignment inside the append transaction requires a single
	// writer; one pooled connection serializes concurrent appends.
	sqlDB.SetMaxOpenConns(1)

	store := &Store{
		sqlDB:   sqlDB,
		keyring: keyring,
	}

	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.LedgerFS, "ledger"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

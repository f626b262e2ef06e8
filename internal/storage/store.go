package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"financetracker/internal/core"
	applog "financetracker/internal/log"

	_ "modernc.org/sqlite"
)

// Store bundles the managers of every entity kind over one database.
type Store struct {
	db *sql.DB

	Accounts      *Manager[core.Account]
	Categories    *Manager[core.Category]
	Subcategories *Manager[core.Subcategory]
	Businesses    *Manager[core.Business]
	Periods       *Manager[core.Period]
	Transactions  *Manager[core.Transaction]
}

// DSN returns the connection string used for dbPath. Foreign keys are
// enforced and writers wait on a locked database instead of failing.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open creates the database directory if needed, applies migrations and
// returns a ready Store.
func Open(ctx context.Context, dbPath string, logger *applog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(applog.ComponentStorage)
	logger.InfoContext(ctx, "Database ready", applog.FieldPath, dbPath)
	return newStore(db, logger), nil
}

func newStore(db *sql.DB, logger *applog.Logger) *Store {
	s := &Store{
		db:            db,
		Accounts:      newManager(db, core.AccountSchema, scanAccount, logger),
		Categories:    newManager(db, core.CategorySchema, scanCategory, logger),
		Subcategories: newManager(db, core.SubcategorySchema, scanSubcategory, logger),
		Businesses:    newManager(db, core.BusinessSchema, scanBusiness, logger),
		Periods:       newManager(db, core.PeriodSchema, scanPeriod, logger),
		Transactions:  newManager(db, core.TransactionSchema, scanTransaction, logger),
	}
	s.Periods.derive = derivePeriod
	return s
}

// Tx is a write transaction that several managers can join through their
// *In methods.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn in one SQL transaction. Nothing fn wrote survives unless
// it returns nil and the commit succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for read-only aggregation queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

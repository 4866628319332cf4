package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Options configures a Store.
type Options struct {
	DataDir string
	Name    string
	Version int
	Logger  *zap.Logger
}

// Store is the local durable store. Call Init before any other method.
type Store struct {
	opts   Options
	logger *zap.Logger

	initMu sync.Mutex
	db     atomic.Pointer[sql.DB]
	closed atomic.Bool
	opens  atomic.Int32
}

// New creates a Store. Nothing is opened until Init.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Version == 0 {
		opts.Version = 1
	}
	return &Store{opts: opts, logger: logger}
}

// Init opens the store and upgrades it to the configured version. It is
// idempotent: a call made while another Init is in flight waits for it and
// then returns without reopening.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.closed.Load() {
		return apperrors.New(apperrors.ErrPersistence, "store is closed")
	}
	if s.db.Load() != nil {
		return nil
	}

	db, err := openDB(s.opts.DataDir, s.opts.Name)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "open store", err)
	}

	if err := s.upgrade(ctx, db); err != nil {
		db.Close()
		return err
	}

	s.db.Store(db)
	s.opens.Add(1)
	s.logger.Info("local store opened",
		zap.String("name", s.opts.Name),
		zap.Int("version", s.opts.Version))
	return nil
}

// upgrade brings the schema to opts.Version.
func (s *Store) upgrade(ctx context.Context, db *sql.DB) error {
	current, err := userVersion(ctx, db)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "read store version", err)
	}
	if current > s.opts.Version {
		return apperrors.New(apperrors.ErrPersistence,
			fmt.Sprintf("store version %d is newer than supported version %d", current, s.opts.Version))
	}

	source, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "load migrations", err)
	}
	migrator := NewMigrator(db, source)
	if err := migrator.Initialize(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "initialize migrations", err)
	}
	applied, err := migrator.UpTo(ctx, s.opts.Version)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "upgrade store", err)
	}
	schema, err := migrator.CurrentVersion(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "read schema version", err)
	}
	if schema < s.opts.Version {
		return apperrors.New(apperrors.ErrMigration,
			fmt.Sprintf("no upgrade script reaches version %d (schema is at %d)", s.opts.Version, schema))
	}
	if current != s.opts.Version {
		if err := setUserVersion(ctx, db, s.opts.Version); err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, "write store version", err)
		}
	}

	if applied > 0 {
		s.logger.Info("local store upgraded",
			zap.Int("from_version", current),
			zap.Int("to_version", s.opts.Version),
			zap.Int("migrations", applied))
	}
	return nil
}

// Close closes the store. Further calls fail with a persistence error.
func (s *Store) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.closed.Store(true)
	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

// Version returns the schema version recorded in the open store.
func (s *Store) Version(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	v, err := userVersion(ctx, db)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrPersistence, "read store version", err)
	}
	return v, nil
}

func (s *Store) handle() (*sql.DB, error) {
	db := s.db.Load()
	if db == nil {
		if s.closed.Load() {
			return nil, apperrors.New(apperrors.ErrPersistence, "store is closed")
		}
		return nil, apperrors.New(apperrors.ErrPersistence, "store not initialized")
	}
	return db, nil
}

// Update runs fn in a read-write transaction. The transaction commits when
// fn returns nil and rolls back otherwise. fn must only use tx; calling Store
// methods from inside fn blocks on the single connection.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, ctx: ctx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "commit transaction", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "begin transaction", err)
	}
	defer sqlTx.Rollback()

	return fn(&Tx{tx: sqlTx, ctx: ctx})
}

// =====================================================
// Single-operation helpers
// =====================================================

// Save inserts or replaces rec by primary key.
func (s *Store) Save(ctx context.Context, collection models.Collection, rec models.Record) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Save(collection, rec)
	})
}

// Get returns the record stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, collection models.Collection, key string) (models.Record, error) {
	var rec models.Record
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Get(collection, key)
		return err
	})
	return rec, err
}

// GetAll returns every record of the collection, or only those whose index
// field equals value when index is not empty.
func (s *Store) GetAll(ctx context.Context, collection models.Collection, index, value string) ([]models.Record, error) {
	var recs []models.Record
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		recs, err = tx.GetAll(collection, index, value)
		return err
	})
	return recs, err
}

// Delete removes the record stored under key. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, collection models.Collection, key string) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Delete(collection, key)
	})
}

// Clear removes every record of the collection.
func (s *Store) Clear(ctx context.Context, collection models.Collection) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Clear(collection)
	})
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection models.Collection) (int, error) {
	var n int
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Count(collection)
		return err
	})
	return n, err
}

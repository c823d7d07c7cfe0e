package sqlitedb

import (
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/cpacia/iouledger/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const dbName = "iouledger.db"

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("tx is read only")

// DB is an implementation of the Database interface using
// the gorm ORM with sqlite.
type DB struct {
	db  *gorm.DB
	mtx sync.RWMutex
}

// NewSqliteDB instantiates a new db which satisfies the Database interface.
// The database file is created inside dataDir.
func NewSqliteDB(dataDir string) (database.Database, error) {
	return open(path.Join(dataDir, dbName))
}

// NewMemoryDB instantiates a new db which satisfies the Database interface.
// The sqlite db will be held in memory.
func NewMemoryDB() (database.Database, error) {
	return open(":memory:")
}

func open(dsn string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every new connection to :memory: is a new, empty database so the
	// pool must never grow past one.
	sqlDB.SetMaxOpenConns(1)
	return &DB{db: db}, nil
}

// View invokes the passed function in the context of a managed
// read-only transaction.  Any errors returned from the user-supplied
// function are returned from this function.
//
// Calling Rollback or Commit on the transaction passed to the
// user-supplied function will result in a panic.
func (s *DB) View(fn func(tx database.Tx) error) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t := readTx(s.db)
	if err := fn(t); err != nil {
		t.Rollback()
		return err
	}
	return t.Commit()
}

// Update invokes the passed function in the context of a managed
// read-write transaction.  Any errors returned from the user-supplied
// function will cause the transaction to be rolled back and are
// returned from this function.  Otherwise, the transaction is committed
// when the user-supplied function returns a nil error.
//
// Calling Rollback or Commit on the transaction passed to the
// user-supplied function will result in a panic.
//
// Commit hooks run after the database lock is released so they may use
// the database themselves.
func (s *DB) Update(fn func(tx database.Tx) error) error {
	hooks, err := s.update(fn)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		hook()
	}
	return nil
}

func (s *DB) update(fn func(tx database.Tx) error) ([]func(), error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, err := writeTx(s.db)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		t.Rollback()
		return nil, err
	}
	hooks := t.commitHooks
	t.commitHooks = nil
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return hooks, nil
}

// Close cleanly shuts down the database and syncs all data.  It will
// block until all database transactions have been finalized (rolled
// back or committed).
func (s *DB) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type tx struct {
	dbtx *gorm.DB

	commitHooks []func()

	closed      bool
	isForWrites bool
}

func writeTx(db *gorm.DB) (*tx, error) {
	dbtx := db.Begin()
	if dbtx.Error != nil {
		return nil, dbtx.Error
	}
	return &tx{dbtx: dbtx, isForWrites: true}, nil
}

func readTx(db *gorm.DB) *tx {
	return &tx{dbtx: db, isForWrites: false}
}

// Commit commits all changes that have been made to the db. Commit hooks
// run only after the underlying commit succeeds.
func (t *tx) Commit() error {
	if t.closed {
		panic("tx already closed")
	}

	defer func() { t.closed = true }()

	if !t.isForWrites {
		return nil
	}

	if err := t.dbtx.Commit().Error; err != nil {
		t.dbtx.Rollback()
		return err
	}
	for _, fn := range t.commitHooks {
		fn()
	}
	return nil
}

// Rollback undoes all changes that have been made to the db.
func (t *tx) Rollback() error {
	if t.closed {
		panic("tx already closed")
	}

	defer func() { t.closed = true }()

	if !t.isForWrites {
		return nil
	}
	return t.dbtx.Rollback().Error
}

// Read returns the underlying sql database so that queries can be made
// against it.
func (t *tx) Read() *gorm.DB {
	return t.dbtx
}

// Save will save the passed in model to the database. If it already exists
// it will be overridden.
func (t *tx) Save(model interface{}) error {
	if !t.isForWrites {
		return ErrReadOnly
	}
	return t.dbtx.Save(model).Error
}

// Create inserts the passed in model.
func (t *tx) Create(model interface{}) error {
	if !t.isForWrites {
		return ErrReadOnly
	}
	return t.dbtx.Create(model).Error
}

// Update will update the given key to the value for the given model. The
// where map can be used to impose extra conditions on which specific model
// gets updated.
func (t *tx) Update(key string, value interface{}, where map[string]interface{}, model interface{}) error {
	if !t.isForWrites {
		return ErrReadOnly
	}
	db := t.dbtx.Model(model)
	for k, v := range where {
		db = db.Where(k, v)
	}
	return db.UpdateColumn(key, value).Error
}

// Delete will delete all models of the given type from the database where
// field == key.
func (t *tx) Delete(key string, value interface{}, model interface{}) error {
	if !t.isForWrites {
		return ErrReadOnly
	}
	return t.dbtx.Where(fmt.Sprintf("%s = ?", key), value).Delete(model).Error
}

// Migrate will auto-migrate the database to from any previous schema for this
// model to the current schema.
func (t *tx) Migrate(model interface{}) error {
	if !t.isForWrites {
		return ErrReadOnly
	}
	return t.dbtx.AutoMigrate(model)
}

// RegisterCommitHook registers a callback that is invoked whenever a commit completes
// successfully.
func (t *tx) RegisterCommitHook(fn func()) {
	t.commitHooks = append(t.commitHooks, fn)
}

// Package database defines the storage interface shared by the vault, the
// notary registry and the notification log.
package database

import "gorm.io/gorm"

// Tx is a database transaction. Read-only transactions refuse writes.
//
// Nothing written through a Tx is visible to other transactions until it
// commits. Managed transactions (the ones handed to View and Update) are
// committed or rolled back by the Database; calling Commit or Rollback on
// them panics.
type Tx interface {
	// Commit makes every write in the transaction durable and then runs the
	// registered commit hooks.
	Commit() error

	// Rollback discards every write in the transaction.
	Rollback() error

	// Read returns the open gorm transaction for queries.
	Read() *gorm.DB

	// Save upserts the model by primary key.
	Save(i interface{}) error

	// Create inserts the model and fails if the primary key is taken. The
	// notary relies on this to detect a second consumption of a state.
	Create(i interface{}) error

	// Update sets key to value on the rows of model matching every
	// condition in where. Conditions are written as "column = ?" or any
	// other single placeholder expression such as "status <> ?".
	Update(key string, value interface{}, where map[string]interface{}, model interface{}) error

	// Delete removes every row of model where key equals value.
	Delete(key string, value interface{}, model interface{}) error

	// Migrate creates or updates the table for model.
	Migrate(model interface{}) error

	// RegisterCommitHook queues fn to run after a successful commit, once
	// the database lock has been released. Events describing ledger
	// changes are emitted from these hooks.
	RegisterCommitHook(fn func())
}

// Database gives atomic access to the node's sqlite store.
type Database interface {
	// View runs fn in a managed read-only transaction and returns its
	// error.
	View(fn func(tx Tx) error) error

	// Update runs fn in a managed read-write transaction. The transaction
	// commits if fn returns nil and rolls back otherwise.
	Update(fn func(tx Tx) error) error

	// Close waits for open transactions to finish and closes the store.
	Close() error
}

package repo

import (
	"io/ioutil"

	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/database/sqlitedb"
)

// MockDB returns an in-memory sqlite db with every model migrated.
func MockDB() (database.Database, error) {
	db, err := sqlitedb.NewMemoryDB()
	if err != nil {
		return nil, err
	}
	if err := autoMigrateDatabase(db); err != nil {
		return nil, err
	}
	return db, nil
}

// MockRepo returns a repo which uses a tmp data directory
// and in-memory database.
func MockRepo() (*Repo, error) {
	dataDir, err := ioutil.TempDir("", "iouledger-test")
	if err != nil {
		return nil, err
	}
	return newRepo(dataDir, "", true)
}

package sqlitedb

import (
	"errors"
	"io/ioutil"
	"os"
	"testing"

	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/models"
)

func newMigratedDB(t *testing.T) database.Database {
	db, err := NewMemoryDB()
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx database.Tx) error {
		return tx.Migrate(&models.Key{})
	})
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestDB_UpdateAndView(t *testing.T) {
	db := newMigratedDB(t)
	defer db.Close()

	err := db.Update(func(tx database.Tx) error {
		return tx.Save(&models.Key{Name: "abc", Value: []byte{0x01}})
	})
	if err != nil {
		t.Error(err)
	}

	var keys []models.Key
	err = db.View(func(tx database.Tx) error {
		return tx.Read().Find(&keys).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 1 {
		t.Errorf("Db update failed. Expected %d keys got %d", 1, len(keys))
	}

	err = db.Update(func(tx database.Tx) error {
		if err := tx.Save(&models.Key{Name: "def"}); err != nil {
			t.Fatal(err)
		}
		return errors.New("atomic update failure")
	})
	if err == nil {
		t.Error("Update function did not return error")
	}

	var keys2 []models.Key
	err = db.View(func(tx database.Tx) error {
		return tx.Read().Find(&keys2).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(keys2) != 1 {
		t.Error("Db update failed to roll back.")
	}
}

func TestDB_ReadOnly(t *testing.T) {
	db := newMigratedDB(t)
	defer db.Close()

	err := db.View(func(tx database.Tx) error {
		return tx.Save(&models.Key{Name: "abc"})
	})
	if err != ErrReadOnly {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}

func TestDB_CreateDuplicate(t *testing.T) {
	db := newMigratedDB(t)
	defer db.Close()

	err := db.Update(func(tx database.Tx) error {
		return tx.Create(&models.Key{Name: "abc"})
	})
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx database.Tx) error {
		return tx.Create(&models.Key{Name: "abc"})
	})
	if err == nil {
		t.Error("Expected error creating a duplicate primary key")
	}
}

func TestDB_UpdateAndDelete(t *testing.T) {
	db := newMigratedDB(t)
	defer db.Close()

	err := db.Update(func(tx database.Tx) error {
		if err := tx.Save(&models.Key{Name: "abc", Value: []byte{0x01}}); err != nil {
			return err
		}
		if err := tx.Save(&models.Key{Name: "def", Value: []byte{0x01}}); err != nil {
			return err
		}
		return tx.Update("value", []byte{0x02}, map[string]interface{}{"name = ?": "abc"}, &models.Key{})
	})
	if err != nil {
		t.Fatal(err)
	}

	var key models.Key
	err = db.View(func(tx database.Tx) error {
		return tx.Read().Where("name = ?", "abc").First(&key).Error
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(key.Value) != 1 || key.Value[0] != 0x02 {
		t.Errorf("Expected updated value, got %x", key.Value)
	}

	err = db.Update(func(tx database.Tx) error {
		return tx.Delete("name", "abc", &models.Key{})
	})
	if err != nil {
		t.Fatal(err)
	}

	var keys []models.Key
	err = db.View(func(tx database.Tx) error {
		return tx.Read().Find(&keys).Error
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Name != "def" {
		t.Errorf("Expected only def to remain, got %v", keys)
	}
}

func TestDB_CommitHooks(t *testing.T) {
	db := newMigratedDB(t)
	defer db.Close()

	var called int
	err := db.Update(func(tx database.Tx) error {
		tx.RegisterCommitHook(func() { called++ })
		return tx.Save(&models.Key{Name: "abc"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if called != 1 {
		t.Errorf("Expected commit hook to run once, ran %d times", called)
	}

	db.Update(func(tx database.Tx) error {
		tx.RegisterCommitHook(func() { called++ })
		return errors.New("fail")
	})
	if called != 1 {
		t.Error("Commit hook ran on rollback")
	}

	// Hooks run outside the lock and may read what was committed.
	var found models.Key
	err = db.Update(func(tx database.Tx) error {
		tx.RegisterCommitHook(func() {
			db.View(func(tx database.Tx) error {
				return tx.Read().Where("name = ?", "def").First(&found).Error
			})
		})
		return tx.Save(&models.Key{Name: "def"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if found.Name != "def" {
		t.Error("Commit hook could not read the committed row")
	}
}

func TestNewSqliteDB(t *testing.T) {
	dir, err := ioutil.TempDir("", "iouledger-sqlitedb")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := NewSqliteDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx database.Tx) error {
		if err := tx.Migrate(&models.Key{}); err != nil {
			return err
		}
		return tx.Save(&models.Key{Name: "abc"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = NewSqliteDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var keys []models.Key
	err = db.View(func(tx database.Tx) error {
		return tx.Read().Find(&keys).Error
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 persisted key, got %d", len(keys))
	}
}

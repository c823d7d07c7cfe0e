package repo

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strconv"

	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/database/sqlitedb"
	"github.com/cpacia/iouledger/models"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/op/go-logging"
	"github.com/tyler-smith/go-bip39"
	"gorm.io/gorm"
)

const (
	// defaultRepoVersion is the current repo version used for migrations.
	defaultRepoVersion = 0

	// versionFileName is the name of the version file.
	versionFileName = "version"

	// identitySeedKey is the HMAC key used to derive the identity key
	// from the mnemonic seed.
	identitySeedKey = "iouledger seed"
)

var log = logging.MustGetLogger("REPO")

// ErrRepoExists is returned by an init that would overwrite an existing
// data directory.
var ErrRepoExists = errors.New("data directory already initialized")

// Repo is a representation of a ledger node's data directory.
// In this we store:
// - The iouledger.conf file
// - The sqlite database holding the vault, keys and notifications
// - The notary registry when running as a notary
// - Rotating log files
type Repo struct {
	db      database.Database
	dataDir string
}

// NewRepo returns a new Repo for the given data directory. It will
// be initialized if it is not already.
func NewRepo(dataDir string) (*Repo, error) {
	return newRepo(dataDir, "", false)
}

// NewRepoWithCustomMnemonicSeed behaves the same as NewRepo but allows
// the caller to pass in a custom mnemonic seed. This is usuful for
// restoring a node from seed.
func NewRepoWithCustomMnemonicSeed(dataDir, mnemonic string) (*Repo, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	return newRepo(dataDir, mnemonic, false)
}

// IsInitialized returns whether a repo exists at dataDir.
func IsInitialized(dataDir string) bool {
	_, err := os.Stat(path.Join(dataDir, versionFileName))
	return err == nil
}

// DB returns the database implementation.
func (r *Repo) DB() database.Database {
	return r.db
}

// DataDir returns the data directory associated with this repo.
func (r *Repo) DataDir() string {
	return r.dataDir
}

// IdentityKey loads the node's libp2p private key from the database.
func (r *Repo) IdentityKey() (crypto.PrivKey, error) {
	var key models.Key
	err := r.db.View(func(tx database.Tx) error {
		return tx.Read().Where("name = ?", models.KeyIdentity).First(&key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("identity key not found in database")
	} else if err != nil {
		return nil, err
	}
	return crypto.UnmarshalPrivateKey(key.Value)
}

// Mnemonic returns the mnemonic the identity key was derived from.
func (r *Repo) Mnemonic() (string, error) {
	var key models.Key
	err := r.db.View(func(tx database.Tx) error {
		return tx.Read().Where("name = ?", models.KeyMnemonic).First(&key).Error
	})
	if err != nil {
		return "", err
	}
	return string(key.Value), nil
}

// Close will close the repo and associated databases.
func (r *Repo) Close() {
	r.db.Close()
}

// DestroyRepo deletes the entire directory. Do NOT use this unless you are
// positive you want to wipe all data.
func (r *Repo) DestroyRepo() error {
	if err := r.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dataDir)
}

// writeVersion writes the version number to file.
func (r *Repo) writeVersion(version int) error {
	versionStr := strconv.Itoa(version)
	return ioutil.WriteFile(path.Join(r.dataDir, versionFileName), []byte(versionStr), os.ModePerm)
}

func newRepo(dataDir, mnemonicSeed string, inMemoryDB bool) (*Repo, error) {
	var (
		dbIdentity, dbMnemonic *models.Key
		err                    error
		isNew                  = !IsInitialized(dataDir)
	)
	if isNew {
		if err := checkWriteable(dataDir); err != nil {
			return nil, err
		}
		if mnemonicSeed == "" {
			mnemonicSeed, err = createMnemonic(bip39.NewEntropy, bip39.NewMnemonic)
			if err != nil {
				return nil, err
			}
		}

		identityKey, err := IdentityKeyFromSeed(bip39.NewSeed(mnemonicSeed, ""))
		if err != nil {
			return nil, err
		}

		dbIdentity = &models.Key{
			Name:  models.KeyIdentity,
			Value: identityKey,
		}
		dbMnemonic = &models.Key{
			Name:  models.KeyMnemonic,
			Value: []byte(mnemonicSeed),
		}
	} else if mnemonicSeed != "" {
		return nil, ErrRepoExists
	}

	var db database.Database
	if inMemoryDB {
		db, err = sqlitedb.NewMemoryDB()
	} else {
		db, err = sqlitedb.NewSqliteDB(dataDir)
	}
	if err != nil {
		return nil, err
	}

	if err := autoMigrateDatabase(db); err != nil {
		return nil, err
	}

	err = db.Update(func(tx database.Tx) error {
		if dbIdentity != nil {
			if err := tx.Save(dbIdentity); err != nil {
				return err
			}
		}
		if dbMnemonic != nil {
			if err := tx.Save(dbMnemonic); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r := &Repo{
		dataDir: dataDir,
		db:      db,
	}
	if isNew {
		if err := r.writeVersion(defaultRepoVersion); err != nil {
			return nil, err
		}
		log.Infof("Initialized new data directory at %s", dataDir)
	}
	return r, nil
}

// IdentityKeyFromSeed derives the serialized Ed25519 libp2p private key
// from a bip39 seed. The same seed always yields the same peer ID.
func IdentityKeyFromSeed(seed []byte) ([]byte, error) {
	hm := hmac.New(sha256.New, []byte(identitySeedKey))
	hm.Write(seed)
	reader := bytes.NewReader(hm.Sum(nil))
	sk, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 0, reader)
	if err != nil {
		return nil, err
	}
	return crypto.MarshalPrivateKey(sk)
}

func checkWriteable(dir string) error {
	_, err := os.Stat(dir)
	if err == nil {
		// Directory exists, make sure we can write to it
		testfile := path.Join(dir, "test")
		fi, err := os.Create(testfile)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%s is not writeable by the current user", dir)
			}
			return fmt.Errorf("unexpected error while checking writeablility of repo root: %s", err)
		}
		fi.Close()
		return os.Remove(testfile)
	}

	if os.IsNotExist(err) {
		// Directory does not exist, check that we can create it
		return os.MkdirAll(dir, 0775)
	}

	if os.IsPermission(err) {
		return fmt.Errorf("cannot write to %s, incorrect permissions", err)
	}

	return err
}

func createMnemonic(newEntropy func(int) ([]byte, error), newMnemonic func([]byte) (string, error)) (string, error) {
	entropy, err := newEntropy(128)
	if err != nil {
		return "", err
	}
	mnemonic, err := newMnemonic(entropy)
	if err != nil {
		return "", err
	}
	return mnemonic, nil
}

func autoMigrateDatabase(db database.Database) error {
	dbModels := []interface{}{
		&models.Key{},
		&models.StateRecord{},
		&models.TransactionRecord{},
		&models.NotarizedInput{},
		&models.NotarizedTransaction{},
		&models.NotificationRecord{},
	}

	return db.Update(func(tx database.Tx) error {
		for _, m := range dbModels {
			if err := tx.Migrate(m); err != nil {
				return err
			}
		}
		return nil
	})
}

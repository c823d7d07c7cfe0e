package repo

import (
	"errors"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/tyler-smith/go-bip39"
)

const testMnemonic = "mule track design catch stairs remain produce evidence cannon opera hamster burst"

func TestNewRepo(t *testing.T) {
	dir, err := ioutil.TempDir("", "iouledger-newrepo")
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRepo(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r.DestroyRepo()

	if r.DB() == nil {
		t.Error("Failed to initialize the database")
	}
	if !IsInitialized(dir) {
		t.Error("Version file not written")
	}

	sk, err := r.IdentityKey()
	if err != nil {
		t.Fatal(err)
	}
	if sk.Type() != crypto.Ed25519 {
		t.Errorf("Expected Ed25519 identity, got %s", sk.Type())
	}

	mnemonic, err := r.Mnemonic()
	if err != nil {
		t.Fatal(err)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		t.Errorf("Stored mnemonic %q is invalid", mnemonic)
	}
}

func TestNewRepo_Reopen(t *testing.T) {
	dir, err := ioutil.TempDir("", "iouledger-reopen")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	r, err := NewRepo(dir)
	if err != nil {
		t.Fatal(err)
	}
	sk, err := r.IdentityKey()
	if err != nil {
		t.Fatal(err)
	}
	r.Close()

	r2, err := NewRepo(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()
	sk2, err := r2.IdentityKey()
	if err != nil {
		t.Fatal(err)
	}
	if !sk.Equals(sk2) {
		t.Error("Reopened repo returned a different identity")
	}

	if _, err := NewRepoWithCustomMnemonicSeed(dir, testMnemonic); err != ErrRepoExists {
		t.Errorf("Expected ErrRepoExists, got %v", err)
	}
}

func TestNewRepoWithCustomMnemonicSeed(t *testing.T) {
	dir, err := ioutil.TempDir("", "iouledger-mnemonic")
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRepoWithCustomMnemonicSeed(path.Join(dir, "a"), testMnemonic)
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	defer r.Close()

	sk, err := r.IdentityKey()
	if err != nil {
		t.Fatal(err)
	}

	expected, err := IdentityKeyFromSeed(bip39.NewSeed(testMnemonic, ""))
	if err != nil {
		t.Fatal(err)
	}
	expectedKey, err := crypto.UnmarshalPrivateKey(expected)
	if err != nil {
		t.Fatal(err)
	}
	if !sk.Equals(expectedKey) {
		t.Error("Identity was not derived from the mnemonic")
	}

	if _, err := NewRepoWithCustomMnemonicSeed(path.Join(dir, "b"), "not a mnemonic"); err == nil {
		t.Error("Expected error for invalid mnemonic")
	}
}

func TestIdentityKeyFromSeed(t *testing.T) {
	key1, err := IdentityKeyFromSeed(bip39.NewSeed(testMnemonic, ""))
	if err != nil {
		t.Fatal(err)
	}
	key2, err := IdentityKeyFromSeed(bip39.NewSeed(testMnemonic, ""))
	if err != nil {
		t.Fatal(err)
	}
	key3, err := IdentityKeyFromSeed(bip39.NewSeed(testMnemonic, "other"))
	if err != nil {
		t.Fatal(err)
	}

	id := func(b []byte) peer.ID {
		sk, err := crypto.UnmarshalPrivateKey(b)
		if err != nil {
			t.Fatal(err)
		}
		pid, err := peer.IDFromPrivateKey(sk)
		if err != nil {
			t.Fatal(err)
		}
		return pid
	}
	if id(key1) != id(key2) {
		t.Error("Derivation is not deterministic")
	}
	if id(key1) == id(key3) {
		t.Error("Different seeds produced the same identity")
	}
}

func TestCreateMnemonic(t *testing.T) {
	mnemonic, err := createMnemonic(bip39.NewEntropy, bip39.NewMnemonic)
	if err != nil {
		t.Fatal(err)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		t.Errorf("Invalid mnemonic %q", mnemonic)
	}

	_, err = createMnemonic(func(int) ([]byte, error) {
		return nil, errors.New("entropy failure")
	}, bip39.NewMnemonic)
	if err == nil {
		t.Error("Expected entropy error to be returned")
	}
}

func TestMockDB(t *testing.T) {
	db, err := MockDB()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/cpacia/iouledger/repo"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/tyler-smith/go-bip39"
)

// Init initializes a new ledger node at the provided path.
type Init struct {
	DataDir  string `short:"d" long:"datadir" description:"Directory to store data"`
	Mnemonic string `short:"m" long:"mnemonic" description:"A mnemonic seed to initialize the node with"`
	Force    bool   `short:"f" long:"force" description:"Force overwrite existing repo (dangerous!)"`
}

// Execute initializes the ledger node.
func (x *Init) Execute(args []string) error {
	if x.DataDir == "" {
		x.DataDir = repo.DefaultHomeDir
	}

	if repo.IsInitialized(x.DataDir) {
		if !x.Force {
			return errors.New("node is already initialized")
		}
		if err := os.RemoveAll(x.DataDir); err != nil {
			return err
		}
	}

	if x.Mnemonic != "" && !bip39.IsMnemonicValid(x.Mnemonic) {
		return errors.New("invalid mnemonic")
	}

	var (
		r   *repo.Repo
		err error
	)
	if x.Mnemonic != "" {
		r, err = repo.NewRepoWithCustomMnemonicSeed(x.DataDir, x.Mnemonic)
	} else {
		r, err = repo.NewRepo(x.DataDir)
	}
	if err != nil {
		return err
	}
	defer r.Close()

	sk, err := r.IdentityKey()
	if err != nil {
		return err
	}
	id, err := peer.IDFromPrivateKey(sk)
	if err != nil {
		return err
	}
	fmt.Printf("Initialized node %s at %s\n", id.Pretty(), x.DataDir)
	return nil
}

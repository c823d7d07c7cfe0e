package models

const (
	// KeyIdentity names the serialized libp2p identity private key.
	KeyIdentity = "identity"

	// KeyMnemonic names the mnemonic the identity was derived from.
	KeyMnemonic = "mnemonic"
)

// Key holds raw key material stored in the database, looked up by name.
type Key struct {
	Name  string `gorm:"primaryKey"`
	Value []byte
}

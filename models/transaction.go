package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrTransactionIDMismatch means the transaction ID does not match the
	// hash of the transaction contents.
	ErrTransactionIDMismatch = errors.New("transaction id does not match contents")

	// ErrInvalidSignature means a signature failed to verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnexpectedSigner means a signature was made by an identity that
	// is not a required signer.
	ErrUnexpectedSigner = errors.New("signature from unexpected signer")
)

// CommandType is the typed command carried by a transaction.
type CommandType string

const (
	CommandWalletIssue  CommandType = "Wallet.Issue"
	CommandWalletUpdate CommandType = "Wallet.Update"
	CommandWalletSettle CommandType = "Wallet.Settle"
	CommandIOUIssue     CommandType = "IOU.Issue"
	CommandIOUDelete    CommandType = "IOU.Delete"
	CommandNotaryChange CommandType = "NotaryChange"
)

// Command declares the intent of a transaction and which identities must
// sign for it.
type Command struct {
	Type    CommandType `json:"type"`
	Signers []peer.ID   `json:"signers"`
}

// HasSigner returns whether id is a required signer of the command.
func (c Command) HasSigner(id peer.ID) bool {
	for _, s := range c.Signers {
		if s == id {
			return true
		}
	}
	return false
}

// StateRef is the identity of a single output version: the transaction
// that produced it and its index in the outputs.
type StateRef struct {
	TxID  string `json:"txID"`
	Index int    `json:"index"`
}

// String returns the ref in txid:index form.
func (r StateRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

// ParseStateRef parses a ref in txid:index form.
func ParseStateRef(s string) (StateRef, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return StateRef{}, fmt.Errorf("malformed state ref: %s", s)
	}
	idx, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return StateRef{}, fmt.Errorf("malformed state ref: %s", s)
	}
	return StateRef{TxID: s[:i], Index: idx}, nil
}

// TransactionState is an output together with the notary it is recorded
// against.
type TransactionState struct {
	Data   ContractState `json:"data"`
	Notary peer.ID       `json:"notary"`
}

// StateAndRef is a resolved input: the state plus its ref.
type StateAndRef struct {
	State TransactionState `json:"state"`
	Ref   StateRef         `json:"ref"`
}

// Transaction is an unsigned ledger transaction. It is the unit of
// atomicity: all inputs are consumed and all outputs produced together
// under notary finality, or nothing happens.
type Transaction struct {
	Inputs    []StateAndRef      `json:"inputs"`
	Outputs   []TransactionState `json:"outputs"`
	Commands  []Command          `json:"commands"`
	Notary    peer.ID            `json:"notary"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ID returns the base58 multihash (blake2b-256) of the canonical encoding
// of the transaction.
func (t *Transaction) ID() (string, error) {
	ser, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	h := blake2b.Sum256(ser)
	encoded, err := multihash.Encode(h[:], multihash.BLAKE2B_MIN+31)
	if err != nil {
		return "", err
	}
	mh, err := multihash.Cast(encoded)
	if err != nil {
		return "", err
	}
	return mh.B58String(), nil
}

// Command returns the command of the given type if present.
func (t *Transaction) Command(typ CommandType) (Command, bool) {
	for _, c := range t.Commands {
		if c.Type == typ {
			return c, true
		}
	}
	return Command{}, false
}

// RequiredSigners returns the union of all command signers in the order
// they first appear.
func (t *Transaction) RequiredSigners() []peer.ID {
	seen := make(map[peer.ID]bool)
	var signers []peer.ID
	for _, c := range t.Commands {
		for _, s := range c.Signers {
			if !seen[s] {
				seen[s] = true
				signers = append(signers, s)
			}
		}
	}
	return signers
}

// Participants returns every identity that participates in an input or
// an output of the transaction.
func (t *Transaction) Participants() []peer.ID {
	seen := make(map[peer.ID]bool)
	var ret []peer.ID
	add := func(ids []peer.ID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				ret = append(ret, id)
			}
		}
	}
	for _, in := range t.Inputs {
		add(in.State.Data.Participants())
	}
	for _, out := range t.Outputs {
		add(out.Data.Participants())
	}
	return ret
}

// OutputRef returns the ref of the output at index i once the transaction
// has the given ID.
func OutputRef(txID string, i int) StateRef {
	return StateRef{TxID: txID, Index: i}
}

// TransactionSignature is a signature over a transaction ID.
type TransactionSignature struct {
	Signer    peer.ID `json:"signer"`
	Signature []byte  `json:"signature"`
}

func (s TransactionSignature) verify(data []byte) error {
	pub, err := s.Signer.ExtractPublicKey()
	if err != nil {
		return err
	}
	valid, err := pub.Verify(data, s.Signature)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidSignature
	}
	return nil
}

// SignedTransaction is a transaction plus the signatures collected so far.
type SignedTransaction struct {
	ID         string                 `json:"id"`
	Tx         Transaction            `json:"tx"`
	Signatures []TransactionSignature `json:"signatures"`
}

// NewSignedTransaction computes the ID of tx and returns it without any
// signatures.
func NewSignedTransaction(tx *Transaction) (*SignedTransaction, error) {
	id, err := tx.ID()
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{ID: id, Tx: *tx}, nil
}

// CheckID recomputes the transaction ID and compares it with the ID the
// transaction claims.
func (st *SignedTransaction) CheckID() error {
	id, err := st.Tx.ID()
	if err != nil {
		return err
	}
	if id != st.ID {
		return ErrTransactionIDMismatch
	}
	return nil
}

// Sign adds a signature from the given key. Signing twice with the same
// key replaces the earlier signature.
func (st *SignedTransaction) Sign(sk crypto.PrivKey) error {
	signer, err := peer.IDFromPrivateKey(sk)
	if err != nil {
		return err
	}
	sig, err := sk.Sign([]byte(st.ID))
	if err != nil {
		return err
	}
	st.AddSignature(TransactionSignature{Signer: signer, Signature: sig})
	return nil
}

// AddSignature adds sig, replacing any earlier signature by the same signer.
func (st *SignedTransaction) AddSignature(sig TransactionSignature) {
	for i, s := range st.Signatures {
		if s.Signer == sig.Signer {
			st.Signatures[i] = sig
			return
		}
	}
	st.Signatures = append(st.Signatures, sig)
}

// SignatureBy returns the signature made by id if present.
func (st *SignedTransaction) SignatureBy(id peer.ID) (TransactionSignature, bool) {
	for _, s := range st.Signatures {
		if s.Signer == id {
			return s, true
		}
	}
	return TransactionSignature{}, false
}

// VerifySignatures checks that every present signature is valid and was
// made by a required signer.
func (st *SignedTransaction) VerifySignatures() error {
	required := make(map[peer.ID]bool)
	for _, s := range st.Tx.RequiredSigners() {
		required[s] = true
	}
	for _, sig := range st.Signatures {
		if !required[sig.Signer] {
			return fmt.Errorf("%w: %s", ErrUnexpectedSigner, sig.Signer.Pretty())
		}
		if err := sig.verify([]byte(st.ID)); err != nil {
			return fmt.Errorf("signature by %s: %w", sig.Signer.Pretty(), err)
		}
	}
	return nil
}

// MissingSigners returns the required signers that have not yet signed.
func (st *SignedTransaction) MissingSigners() []peer.ID {
	var missing []peer.ID
	for _, s := range st.Tx.RequiredSigners() {
		if _, ok := st.SignatureBy(s); !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// VerifyRequiredSignatures checks all signatures and that none are missing.
func (st *SignedTransaction) VerifyRequiredSignatures() error {
	if err := st.VerifySignatures(); err != nil {
		return err
	}
	if missing := st.MissingSigners(); len(missing) > 0 {
		return fmt.Errorf("missing signature from %s", missing[0].Pretty())
	}
	return nil
}

// FinalizedTransaction is a fully signed transaction that the notary has
// timestamped and committed.
type FinalizedTransaction struct {
	SignedTransaction
	NotarySignature TransactionSignature `json:"notarySignature"`
	Timestamp       time.Time            `json:"timestamp"`
}

// NotarySigningData returns the bytes the notary signs for a transaction.
func NotarySigningData(txID string, timestamp time.Time) []byte {
	return []byte(txID + "|" + timestamp.UTC().Format(time.RFC3339Nano))
}

// VerifyNotarySignature checks the notary signature is from the
// transaction's notary and valid.
func (ft *FinalizedTransaction) VerifyNotarySignature() error {
	if ft.NotarySignature.Signer != ft.Tx.Notary {
		return fmt.Errorf("%w: %s is not the transaction notary", ErrUnexpectedSigner, ft.NotarySignature.Signer.Pretty())
	}
	return ft.NotarySignature.verify(NotarySigningData(ft.ID, ft.Timestamp))
}

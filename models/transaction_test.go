package models

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

func newTestKey(t *testing.T) (crypto.PrivKey, peer.ID) {
	sk, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	id, err := peer.IDFromPrivateKey(sk)
	if err != nil {
		t.Fatal(err)
	}
	return sk, id
}

func newTestIOUTransaction(t *testing.T, lender, borrower, notary peer.ID) *Transaction {
	iou := NewIOUState(lender, borrower, decimal.NewFromInt(40))
	return &Transaction{
		Outputs: []TransactionState{{Data: IOUContractState(iou), Notary: notary}},
		Commands: []Command{
			{Type: CommandIOUIssue, Signers: []peer.ID{lender, borrower}},
		},
		Notary:    notary,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTransaction_IDStableAcrossEncoding(t *testing.T) {
	_, lender := newTestKey(t)
	_, borrower := newTestKey(t)
	_, notary := newTestKey(t)

	tx := newTestIOUTransaction(t, lender, borrower, notary)
	id, err := tx.ID()
	if err != nil {
		t.Fatal(err)
	}

	ser, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Transaction
	if err := json.Unmarshal(ser, &decoded); err != nil {
		t.Fatal(err)
	}
	id2, err := decoded.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id != id2 {
		t.Errorf("Expected id %s after decoding, got %s", id, id2)
	}

	decoded.Outputs[0].Data.IOU.Value = decimal.NewFromInt(41)
	id3, err := decoded.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id3 == id {
		t.Error("Changing an output did not change the id")
	}
}

func TestSignedTransaction_Signatures(t *testing.T) {
	lenderKey, lender := newTestKey(t)
	borrowerKey, borrower := newTestKey(t)
	strangerKey, _ := newTestKey(t)
	_, notary := newTestKey(t)

	stx, err := NewSignedTransaction(newTestIOUTransaction(t, lender, borrower, notary))
	if err != nil {
		t.Fatal(err)
	}

	if err := stx.Sign(lenderKey); err != nil {
		t.Fatal(err)
	}
	if err := stx.VerifySignatures(); err != nil {
		t.Errorf("Valid partial signatures failed to verify: %s", err)
	}
	missing := stx.MissingSigners()
	if len(missing) != 1 || missing[0] != borrower {
		t.Errorf("Expected borrower to be the missing signer, got %v", missing)
	}
	if err := stx.VerifyRequiredSignatures(); err == nil {
		t.Error("Expected error with missing signature")
	}

	if err := stx.Sign(borrowerKey); err != nil {
		t.Fatal(err)
	}
	if err := stx.VerifyRequiredSignatures(); err != nil {
		t.Errorf("Fully signed transaction failed to verify: %s", err)
	}

	// Signing twice replaces rather than duplicates.
	if err := stx.Sign(borrowerKey); err != nil {
		t.Fatal(err)
	}
	if len(stx.Signatures) != 2 {
		t.Errorf("Expected 2 signatures, got %d", len(stx.Signatures))
	}

	if err := stx.Sign(strangerKey); err != nil {
		t.Fatal(err)
	}
	if err := stx.VerifySignatures(); !errors.Is(err, ErrUnexpectedSigner) {
		t.Errorf("Expected ErrUnexpectedSigner, got %v", err)
	}
}

func TestSignedTransaction_TamperedSignature(t *testing.T) {
	lenderKey, lender := newTestKey(t)
	_, borrower := newTestKey(t)
	_, notary := newTestKey(t)

	stx, err := NewSignedTransaction(newTestIOUTransaction(t, lender, borrower, notary))
	if err != nil {
		t.Fatal(err)
	}
	if err := stx.Sign(lenderKey); err != nil {
		t.Fatal(err)
	}
	stx.Signatures[0].Signature[0] ^= 0xff
	if err := stx.VerifySignatures(); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestSignedTransaction_CheckID(t *testing.T) {
	_, lender := newTestKey(t)
	_, borrower := newTestKey(t)
	_, notary := newTestKey(t)

	stx, err := NewSignedTransaction(newTestIOUTransaction(t, lender, borrower, notary))
	if err != nil {
		t.Fatal(err)
	}
	if err := stx.CheckID(); err != nil {
		t.Fatal(err)
	}
	stx.Tx.Outputs[0].Data.IOU.Borrower = lender
	if err := stx.CheckID(); err != ErrTransactionIDMismatch {
		t.Errorf("Expected ErrTransactionIDMismatch, got %v", err)
	}
}

func TestFinalizedTransaction_VerifyNotarySignature(t *testing.T) {
	_, lender := newTestKey(t)
	_, borrower := newTestKey(t)
	notaryKey, notary := newTestKey(t)
	otherKey, other := newTestKey(t)

	stx, err := NewSignedTransaction(newTestIOUTransaction(t, lender, borrower, notary))
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Now()
	sig, err := notaryKey.Sign(NotarySigningData(stx.ID, ts))
	if err != nil {
		t.Fatal(err)
	}
	ft := &FinalizedTransaction{
		SignedTransaction: *stx,
		NotarySignature:   TransactionSignature{Signer: notary, Signature: sig},
		Timestamp:         ts,
	}
	if err := ft.VerifyNotarySignature(); err != nil {
		t.Errorf("Valid notary signature failed to verify: %s", err)
	}

	sig, err = otherKey.Sign(NotarySigningData(stx.ID, ts))
	if err != nil {
		t.Fatal(err)
	}
	ft.NotarySignature = TransactionSignature{Signer: other, Signature: sig}
	if err := ft.VerifyNotarySignature(); err == nil {
		t.Error("Expected error for signature from a non-notary")
	}
}

func TestParseStateRef(t *testing.T) {
	tests := []struct {
		ref     string
		txID    string
		index   int
		isValid bool
	}{
		{"abc:0", "abc", 0, true},
		{"abc:12", "abc", 12, true},
		{"abc", "", 0, false},
		{":1", "", 0, false},
		{"abc:x", "", 0, false},
	}
	for _, test := range tests {
		ref, err := ParseStateRef(test.ref)
		if test.isValid && err != nil {
			t.Errorf("%s: unexpected error %s", test.ref, err)
			continue
		}
		if !test.isValid {
			if err == nil {
				t.Errorf("%s: expected error", test.ref)
			}
			continue
		}
		if ref.TxID != test.txID || ref.Index != test.index {
			t.Errorf("%s: parsed to %s", test.ref, ref)
		}
		if ref.String() != test.ref {
			t.Errorf("Expected %s, got %s", test.ref, ref.String())
		}
	}
}

package vault

import (
	"testing"
	"time"

	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/repo"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/test"
	"github.com/shopspring/decimal"
)

func newTestVault(t *testing.T) (*Vault, events.Bus) {
	db, err := repo.MockDB()
	if err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	return New(db, bus), bus
}

func randPeerID(t *testing.T) peer.ID {
	id, err := test.RandPeerID()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func finalized(t *testing.T, tx *models.Transaction, signer peer.ID, ts time.Time) *models.FinalizedTransaction {
	stx, err := models.NewSignedTransaction(tx)
	if err != nil {
		t.Fatal(err)
	}
	stx.AddSignature(models.TransactionSignature{Signer: signer, Signature: []byte{0x01}})
	return &models.FinalizedTransaction{
		SignedTransaction: *stx,
		NotarySignature:   models.TransactionSignature{Signer: tx.Notary, Signature: []byte{0x02}},
		Timestamp:         ts,
	}
}

func issueWallet(t *testing.T, owner, notary peer.ID, amount int64, ts time.Time) (*models.FinalizedTransaction, *models.WalletState) {
	w := models.NewWalletState(owner, decimal.NewFromInt(amount), "init")
	tx := &models.Transaction{
		Outputs:   []models.TransactionState{{Data: models.WalletContractState(w), Notary: notary}},
		Commands:  []models.Command{{Type: models.CommandWalletIssue, Signers: []peer.ID{owner}}},
		Notary:    notary,
		CreatedAt: ts,
	}
	return finalized(t, tx, owner, ts), w
}

func TestVault_RecordAndFind(t *testing.T) {
	v, bus := newTestVault(t)
	me, notary := randPeerID(t), randPeerID(t)

	sub, err := bus.Subscribe(&events.TransactionFinalized{})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	now := time.Now()
	ft, w := issueWallet(t, me, notary, 100, now)
	if err := v.RecordTransaction(ft, me); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-sub.Out():
		tf := e.(*events.TransactionFinalized)
		if tf.TxID != ft.ID {
			t.Errorf("Expected txID %s, got %s", ft.ID, tf.TxID)
		}
		if !tf.Initiated {
			t.Error("Expected transaction to be marked as initiated")
		}
	case <-time.After(time.Second * 5):
		t.Fatal("Timed out waiting for event")
	}

	sr, err := v.FindUnconsumed(w.LinearID, models.ContractWallet)
	if err != nil {
		t.Fatal(err)
	}
	if !sr.State.Data.Wallet.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected amount 100, got %s", sr.State.Data.Wallet.Amount)
	}
	if sr.Ref != models.OutputRef(ft.ID, 0) {
		t.Errorf("Unexpected ref %s", sr.Ref)
	}

	// Recording again is a no-op and emits nothing.
	if err := v.RecordTransaction(ft, me); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sub.Out():
		t.Error("Duplicate record emitted an event")
	case <-time.After(time.Millisecond * 100):
	}

	all, err := v.ListStates(models.ContractWallet, models.StatusAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 state, got %d", len(all))
	}

	got, err := v.GetTransaction(ft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != ft.ID {
		t.Errorf("Expected transaction %s, got %s", ft.ID, got.ID)
	}
	if _, err := v.GetTransaction("nope"); err != ErrTransactionNotFound {
		t.Errorf("Expected ErrTransactionNotFound, got %v", err)
	}
}

func TestVault_ConsumeAndHistory(t *testing.T) {
	v, _ := newTestVault(t)
	me, notary := randPeerID(t), randPeerID(t)

	now := time.Now()
	ft, w := issueWallet(t, me, notary, 100, now)
	if err := v.RecordTransaction(ft, me); err != nil {
		t.Fatal(err)
	}

	old, err := v.FindUnconsumed(w.LinearID, models.ContractWallet)
	if err != nil {
		t.Fatal(err)
	}
	next := w.Successor(decimal.NewFromInt(150), "topup")
	update := &models.Transaction{
		Inputs:    []models.StateAndRef{*old},
		Outputs:   []models.TransactionState{{Data: models.WalletContractState(next), Notary: notary}},
		Commands:  []models.Command{{Type: models.CommandWalletUpdate, Signers: []peer.ID{me}}},
		Notary:    notary,
		CreatedAt: now.Add(time.Second),
	}
	ft2 := finalized(t, update, me, now.Add(time.Second))
	if err := v.RecordTransaction(ft2, me); err != nil {
		t.Fatal(err)
	}

	current, err := v.FindUnconsumed(w.LinearID, models.ContractWallet)
	if err != nil {
		t.Fatal(err)
	}
	if !current.State.Data.Wallet.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected amount 150, got %s", current.State.Data.Wallet.Amount)
	}

	history, err := v.History(w.LinearID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(history))
	}
	if history[0].Ref.TxID != ft2.ID {
		t.Error("History is not newest first")
	}

	consumed, err := v.ListByOwner(me, models.ContractWallet, models.StatusConsumed)
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 || consumed[0].Ref != old.Ref {
		t.Error("Old version was not marked consumed")
	}

	unconsumed, err := v.ListByOwner(me, models.ContractWallet, models.StatusUnconsumed)
	if err != nil {
		t.Fatal(err)
	}
	if len(unconsumed) != 1 || unconsumed[0].Ref.TxID != ft2.ID {
		t.Error("Expected only the new version to be unconsumed")
	}
}

func TestVault_NotFoundAndAmbiguous(t *testing.T) {
	v, _ := newTestVault(t)
	me, notary := randPeerID(t), randPeerID(t)

	_, err := v.FindUnconsumed(uuid.New(), models.ContractWallet)
	if !models.IsNotFoundError(err) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}

	now := time.Now()
	ft, w := issueWallet(t, me, notary, 100, now)
	if err := v.RecordTransaction(ft, me); err != nil {
		t.Fatal(err)
	}

	// A second, unrelated issuance reusing the same linear id.
	dup := models.NewWalletState(me, decimal.NewFromInt(5), "dup")
	dup.LinearID = w.LinearID
	tx := &models.Transaction{
		Outputs:   []models.TransactionState{{Data: models.WalletContractState(dup), Notary: notary}},
		Commands:  []models.Command{{Type: models.CommandWalletIssue, Signers: []peer.ID{me}}},
		Notary:    notary,
		CreatedAt: now.Add(time.Second),
	}
	if err := v.RecordTransaction(finalized(t, tx, me, now.Add(time.Second)), me); err != nil {
		t.Fatal(err)
	}

	_, err = v.FindUnconsumed(w.LinearID, models.ContractWallet)
	if !models.IsAmbiguousStateError(err) {
		t.Errorf("Expected AmbiguousStateError, got %v", err)
	}
}

func TestVault_OnlyRelevantOutputs(t *testing.T) {
	v, _ := newTestVault(t)
	me, lender, borrower, notary := randPeerID(t), randPeerID(t), randPeerID(t), randPeerID(t)

	iou := models.NewIOUState(lender, borrower, decimal.NewFromInt(40))
	tx := &models.Transaction{
		Outputs:   []models.TransactionState{{Data: models.IOUContractState(iou), Notary: notary}},
		Commands:  []models.Command{{Type: models.CommandIOUIssue, Signers: []peer.ID{lender, borrower}}},
		Notary:    notary,
		CreatedAt: time.Now(),
	}
	ft := finalized(t, tx, lender, time.Now())
	if err := v.RecordTransaction(ft, me); err != nil {
		t.Fatal(err)
	}

	states, err := v.ListStates(models.ContractIOU, models.StatusAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 0 {
		t.Error("Recorded a state this node does not participate in")
	}

	v2, _ := newTestVault(t)
	if err := v2.RecordTransaction(ft, borrower); err != nil {
		t.Fatal(err)
	}
	participating, err := v2.ListByParticipant(borrower, models.ContractIOU, models.StatusUnconsumed)
	if err != nil {
		t.Fatal(err)
	}
	if len(participating) != 1 {
		t.Errorf("Expected the borrower to see 1 IOU, got %d", len(participating))
	}
	owned, err := v2.ListByOwner(borrower, models.ContractIOU, models.StatusUnconsumed)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 0 {
		t.Error("Borrower should not own the IOU")
	}
}

package models

import (
	"encoding/json"
	"time"
)

// StateStatus filters vault queries by consumption status.
type StateStatus string

const (
	// StatusUnconsumed selects only current versions.
	StatusUnconsumed StateStatus = "unconsumed"
	// StatusConsumed selects only retired versions.
	StatusConsumed StateStatus = "consumed"
	// StatusAll selects every version.
	StatusAll StateStatus = "all"
)

// StateRecord is a single state version recorded in the vault. Rows are
// append only; the only change ever made to a row is marking it consumed.
type StateRecord struct {
	Ref          string `gorm:"primaryKey"`
	TxID         string `gorm:"index"`
	LinearID     string `gorm:"index"`
	Contract     string `gorm:"index"`
	Owner        string `gorm:"index"`
	Counterparty string `gorm:"index"`
	Notary       string
	Consumed     bool `gorm:"index"`
	ConsumingTx  string
	RecordedAt   time.Time `gorm:"index"`
	ConsumedAt   time.Time
	Serialized   []byte
}

// NewStateRecord builds the vault row for the output at ref.
func NewStateRecord(sr StateAndRef, recordedAt time.Time) (*StateRecord, error) {
	ser, err := json.Marshal(sr.State)
	if err != nil {
		return nil, err
	}
	return &StateRecord{
		Ref:          sr.Ref.String(),
		TxID:         sr.Ref.TxID,
		LinearID:     sr.State.Data.LinearID().String(),
		Contract:     string(sr.State.Data.Contract),
		Owner:        sr.State.Data.Owner().Pretty(),
		Counterparty: sr.State.Data.Counterparty().Pretty(),
		Notary:       sr.State.Notary.Pretty(),
		RecordedAt:   recordedAt,
		Serialized:   ser,
	}, nil
}

// StateAndRef decodes the row back into a StateAndRef.
func (r *StateRecord) StateAndRef() (StateAndRef, error) {
	var state TransactionState
	if err := json.Unmarshal(r.Serialized, &state); err != nil {
		return StateAndRef{}, err
	}
	ref, err := ParseStateRef(r.Ref)
	if err != nil {
		return StateAndRef{}, err
	}
	return StateAndRef{State: state, Ref: ref}, nil
}

// TransactionRecord is a finalized transaction stored in the vault.
type TransactionRecord struct {
	ID         string `gorm:"primaryKey"`
	Notary     string
	Timestamp  time.Time `gorm:"index"`
	Serialized []byte
}

// NewTransactionRecord builds the vault row for a finalized transaction.
func NewTransactionRecord(ft *FinalizedTransaction) (*TransactionRecord, error) {
	ser, err := json.Marshal(ft)
	if err != nil {
		return nil, err
	}
	return &TransactionRecord{
		ID:         ft.ID,
		Notary:     ft.Tx.Notary.Pretty(),
		Timestamp:  ft.Timestamp,
		Serialized: ser,
	}, nil
}

// Transaction decodes the stored finalized transaction.
func (r *TransactionRecord) Transaction() (*FinalizedTransaction, error) {
	ft := new(FinalizedTransaction)
	if err := json.Unmarshal(r.Serialized, ft); err != nil {
		return nil, err
	}
	return ft, nil
}

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

// ErrUnknownContract is returned when a contract state carries neither
// a wallet nor an IOU.
var ErrUnknownContract = errors.New("unknown contract state")

// ContractType identifies which contract governs a state.
type ContractType string

const (
	// ContractWallet governs WalletStates.
	ContractWallet ContractType = "wallet"
	// ContractIOU governs IOUStates.
	ContractIOU ContractType = "iou"
)

// WalletState is an owner's balance at one point in the ledger history.
// Every version of the same wallet shares a LinearID. A new version is
// only ever produced by a transaction that consumes the previous one.
type WalletState struct {
	Owner        peer.ID         `json:"owner"`
	Amount       decimal.Decimal `json:"amount"`
	LastMovement string          `json:"lastMovement"`
	TimeCreation time.Time       `json:"timeCreation"`
	TimeUpdate   time.Time       `json:"timeUpdate"`
	LinearID     uuid.UUID       `json:"linearID"`
}

// NewWalletState returns the first version of a new wallet.
func NewWalletState(owner peer.ID, amount decimal.Decimal, lastMovement string) *WalletState {
	now := time.Now().UTC()
	return &WalletState{
		Owner:        owner,
		Amount:       amount,
		LastMovement: lastMovement,
		TimeCreation: now,
		TimeUpdate:   now,
		LinearID:     uuid.New(),
	}
}

// Successor returns the next version of the wallet with the given amount
// and last movement. The linear ID and creation time carry over.
func (w *WalletState) Successor(amount decimal.Decimal, lastMovement string) *WalletState {
	return &WalletState{
		Owner:        w.Owner,
		Amount:       amount,
		LastMovement: lastMovement,
		TimeCreation: w.TimeCreation,
		TimeUpdate:   time.Now().UTC(),
		LinearID:     w.LinearID,
	}
}

// Participants returns the identities that must agree to changes.
func (w *WalletState) Participants() []peer.ID {
	return []peer.ID{w.Owner}
}

// IOUState is an obligation: the borrower owes Value to the lender.
type IOUState struct {
	Lender   peer.ID         `json:"lender"`
	Borrower peer.ID         `json:"borrower"`
	Value    decimal.Decimal `json:"value"`
	LinearID uuid.UUID       `json:"linearID"`
}

// NewIOUState returns a new IOU with a fresh linear ID.
func NewIOUState(lender, borrower peer.ID, value decimal.Decimal) *IOUState {
	return &IOUState{
		Lender:   lender,
		Borrower: borrower,
		Value:    value,
		LinearID: uuid.New(),
	}
}

// Participants returns the identities that must agree to changes.
func (i *IOUState) Participants() []peer.ID {
	return []peer.ID{i.Lender, i.Borrower}
}

// ContractState is a tagged union of the states known to the ledger.
// Exactly one of Wallet or IOU is set and Contract names which.
type ContractState struct {
	Contract ContractType `json:"contract"`
	Wallet   *WalletState `json:"wallet,omitempty"`
	IOU      *IOUState    `json:"iou,omitempty"`
}

// WalletContractState wraps a wallet.
func WalletContractState(w *WalletState) ContractState {
	return ContractState{Contract: ContractWallet, Wallet: w}
}

// IOUContractState wraps an IOU.
func IOUContractState(i *IOUState) ContractState {
	return ContractState{Contract: ContractIOU, IOU: i}
}

// Validate checks that the union tag agrees with its contents.
func (c ContractState) Validate() error {
	switch c.Contract {
	case ContractWallet:
		if c.Wallet == nil || c.IOU != nil {
			return ErrUnknownContract
		}
	case ContractIOU:
		if c.IOU == nil || c.Wallet != nil {
			return ErrUnknownContract
		}
	default:
		return ErrUnknownContract
	}
	return nil
}

// LinearID returns the linear ID of the wrapped state.
func (c ContractState) LinearID() uuid.UUID {
	switch c.Contract {
	case ContractWallet:
		if c.Wallet != nil {
			return c.Wallet.LinearID
		}
	case ContractIOU:
		if c.IOU != nil {
			return c.IOU.LinearID
		}
	}
	return uuid.Nil
}

// Participants returns the participants of the wrapped state.
func (c ContractState) Participants() []peer.ID {
	switch c.Contract {
	case ContractWallet:
		if c.Wallet != nil {
			return c.Wallet.Participants()
		}
	case ContractIOU:
		if c.IOU != nil {
			return c.IOU.Participants()
		}
	}
	return nil
}

// Owner returns the identity that holds the state: the wallet owner or
// the IOU lender.
func (c ContractState) Owner() peer.ID {
	switch c.Contract {
	case ContractWallet:
		if c.Wallet != nil {
			return c.Wallet.Owner
		}
	case ContractIOU:
		if c.IOU != nil {
			return c.IOU.Lender
		}
	}
	return ""
}

// Counterparty returns the IOU borrower. Wallets have no counterparty.
func (c ContractState) Counterparty() peer.ID {
	if c.Contract == ContractIOU && c.IOU != nil {
		return c.IOU.Borrower
	}
	return ""
}

// IsParticipant returns whether id participates in the state.
func (c ContractState) IsParticipant(id peer.ID) bool {
	for _, p := range c.Participants() {
		if p == id {
			return true
		}
	}
	return false
}

// Package contracts holds the state transition rules of the ledger. Verify
// is a pure function of the transaction: it never consults the vault or
// any other node state, so every party that sees the same transaction
// reaches the same verdict.
package contracts

import (
	"fmt"

	"github.com/cpacia/iouledger/models"
)

// ruleFunc checks one command against the transaction it appears in.
type ruleFunc func(tx *models.Transaction, cmd models.Command) error

var rules = map[models.CommandType]ruleFunc{
	models.CommandWalletIssue:  verifyWalletIssue,
	models.CommandWalletUpdate: verifyWalletUpdate,
	models.CommandWalletSettle: verifyWalletSettle,
	models.CommandIOUIssue:     verifyIOUIssue,
	models.CommandIOUDelete:    verifyIOUDelete,
	models.CommandNotaryChange: verifyNotaryChange,
}

// pairedCommands lists the only commands allowed to share a transaction.
var pairedCommands = map[models.CommandType]models.CommandType{
	models.CommandWalletSettle: models.CommandIOUDelete,
	models.CommandIOUDelete:    models.CommandWalletSettle,
}

// Verify runs the structural checks and then the rule of every command in
// the transaction. The first violated rule is returned as a
// *models.ValidationError.
func Verify(tx *models.Transaction) error {
	if err := verifyStructure(tx); err != nil {
		return err
	}
	for _, cmd := range tx.Commands {
		rule, ok := rules[cmd.Type]
		if !ok {
			return reject(cmd.Type, fmt.Sprintf("unknown command %q", cmd.Type))
		}
		if err := rule(tx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func verifyStructure(tx *models.Transaction) error {
	if tx == nil {
		return reject("", "transaction is nil")
	}
	if len(tx.Commands) == 0 {
		return reject("", "transaction must have at least one command")
	}
	if tx.Notary == "" {
		return reject("", "transaction notary must be set")
	}

	seen := make(map[models.CommandType]bool)
	for _, cmd := range tx.Commands {
		if seen[cmd.Type] {
			return reject(cmd.Type, "command appears more than once")
		}
		seen[cmd.Type] = true
		if len(cmd.Signers) == 0 {
			return reject(cmd.Type, "command has no required signers")
		}
	}
	if len(tx.Commands) > 1 {
		for _, cmd := range tx.Commands {
			pair, ok := pairedCommands[cmd.Type]
			if !ok || len(tx.Commands) != 2 || !seen[pair] {
				return reject(cmd.Type, fmt.Sprintf("%s cannot be combined with other commands", cmd.Type))
			}
		}
	}

	for i, in := range tx.Inputs {
		if err := in.State.Data.Validate(); err != nil {
			return reject("", fmt.Sprintf("input %d is not a known contract state", i))
		}
	}
	for i, out := range tx.Outputs {
		if err := out.Data.Validate(); err != nil {
			return reject("", fmt.Sprintf("output %d is not a known contract state", i))
		}
	}

	// A notary change is the one transaction whose states legitimately
	// disagree on the notary; its own rule checks them.
	if seen[models.CommandNotaryChange] {
		return nil
	}
	for _, in := range tx.Inputs {
		if in.State.Notary != tx.Notary {
			return reject("", fmt.Sprintf("input %s is governed by a different notary than the transaction", in.Ref))
		}
	}
	for i, out := range tx.Outputs {
		if out.Notary != tx.Notary {
			return reject("", fmt.Sprintf("output %d is assigned a different notary than the transaction", i))
		}
	}
	return nil
}

func reject(cmd models.CommandType, rule string) error {
	return &models.ValidationError{Command: cmd, Rule: rule}
}

// signedByAll returns the first participant missing from the command's
// signers, if any.
func signedByAll(cmd models.Command, state models.ContractState) error {
	for _, p := range state.Participants() {
		if !cmd.HasSigner(p) {
			return reject(cmd.Type, fmt.Sprintf("participant %s must be a required signer", p.Pretty()))
		}
	}
	return nil
}

// walletAndIOUInputs splits a two input transaction into its wallet and
// IOU. ok is false unless there is exactly one of each.
func walletAndIOUInputs(tx *models.Transaction) (wallet *models.WalletState, iou *models.IOUState, ok bool) {
	if len(tx.Inputs) != 2 {
		return nil, nil, false
	}
	for _, in := range tx.Inputs {
		switch in.State.Data.Contract {
		case models.ContractWallet:
			if wallet != nil {
				return nil, nil, false
			}
			wallet = in.State.Data.Wallet
		case models.ContractIOU:
			if iou != nil {
				return nil, nil, false
			}
			iou = in.State.Data.IOU
		}
	}
	return wallet, iou, wallet != nil && iou != nil
}

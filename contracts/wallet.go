package contracts

import (
	"github.com/cpacia/iouledger/models"
)

const (
	ruleIssueNoInputs         = "no inputs should be consumed when issuing a wallet"
	ruleIssueOneOutput        = "only one output state should be created when issuing a wallet"
	ruleIssueAmountPositive   = "amount must be greater than zero"
	ruleLastMovementRequired  = "lastMovement must not be empty"
	ruleUpdateOneInput        = "only one wallet input should be consumed when updating a wallet"
	ruleUpdateOneOutput       = "only one wallet output should be created when updating a wallet"
	ruleOwnerUnchanged        = "the owner of the wallet must not change"
	ruleAmountChanged         = "the wallet amount must change"
	ruleAmountNonNegative     = "the new wallet amount must not be negative"
	ruleLinearIDUnchanged     = "the linear id of the wallet must not change"
	ruleTimeCreationUnchanged = "the creation time of the wallet must not change"
	ruleSettleInputs          = "settling must consume exactly one IOU and one wallet"
	ruleSettleOneOutput       = "only one wallet output should be created when settling"
	ruleSettleLenderIsOwner   = "the IOU lender must be the owner of the wallet"
	ruleSettleCovered         = "the IOU value must not exceed the wallet amount"
	ruleSettleArithmetic      = "the new wallet amount must equal the old amount minus the IOU value"
	ruleSettleNeedsDelete     = "settling must delete the IOU in the same transaction"
)

func verifyWalletIssue(tx *models.Transaction, cmd models.Command) error {
	if len(tx.Inputs) != 0 {
		return reject(cmd.Type, ruleIssueNoInputs)
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Data.Contract != models.ContractWallet {
		return reject(cmd.Type, ruleIssueOneOutput)
	}
	out := tx.Outputs[0].Data
	if err := signedByAll(cmd, out); err != nil {
		return err
	}
	if out.Wallet.Amount.Sign() <= 0 {
		return reject(cmd.Type, ruleIssueAmountPositive)
	}
	if out.Wallet.LastMovement == "" {
		return reject(cmd.Type, ruleLastMovementRequired)
	}
	return nil
}

func verifyWalletUpdate(tx *models.Transaction, cmd models.Command) error {
	if len(tx.Inputs) != 1 || tx.Inputs[0].State.Data.Contract != models.ContractWallet {
		return reject(cmd.Type, ruleUpdateOneInput)
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Data.Contract != models.ContractWallet {
		return reject(cmd.Type, ruleUpdateOneOutput)
	}
	old := tx.Inputs[0].State.Data.Wallet
	out := tx.Outputs[0].Data
	if err := signedByAll(cmd, out); err != nil {
		return err
	}
	if err := verifySuccessor(cmd, old, out.Wallet); err != nil {
		return err
	}
	if !old.TimeCreation.Equal(out.Wallet.TimeCreation) {
		return reject(cmd.Type, ruleTimeCreationUnchanged)
	}
	return nil
}

func verifyWalletSettle(tx *models.Transaction, cmd models.Command) error {
	old, iou, ok := walletAndIOUInputs(tx)
	if !ok {
		return reject(cmd.Type, ruleSettleInputs)
	}
	if _, ok := tx.Command(models.CommandIOUDelete); !ok {
		return reject(cmd.Type, ruleSettleNeedsDelete)
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Data.Contract != models.ContractWallet {
		return reject(cmd.Type, ruleSettleOneOutput)
	}
	out := tx.Outputs[0].Data
	if iou.Lender != old.Owner {
		return reject(cmd.Type, ruleSettleLenderIsOwner)
	}
	if iou.Value.GreaterThan(old.Amount) {
		return reject(cmd.Type, ruleSettleCovered)
	}
	if err := verifySuccessor(cmd, old, out.Wallet); err != nil {
		return err
	}
	if err := signedByAll(cmd, out); err != nil {
		return err
	}
	if !out.Wallet.Amount.Equal(old.Amount.Sub(iou.Value)) {
		return reject(cmd.Type, ruleSettleArithmetic)
	}
	return nil
}

// verifySuccessor holds the rules shared by every transition that
// replaces one wallet version with the next.
func verifySuccessor(cmd models.Command, old, next *models.WalletState) error {
	if old.Owner != next.Owner {
		return reject(cmd.Type, ruleOwnerUnchanged)
	}
	if old.Amount.Equal(next.Amount) {
		return reject(cmd.Type, ruleAmountChanged)
	}
	if next.Amount.Sign() < 0 {
		return reject(cmd.Type, ruleAmountNonNegative)
	}
	if next.LastMovement == "" {
		return reject(cmd.Type, ruleLastMovementRequired)
	}
	if old.LinearID != next.LinearID {
		return reject(cmd.Type, ruleLinearIDUnchanged)
	}
	return nil
}

package contracts

import (
	"github.com/cpacia/iouledger/models"
)

const (
	ruleIOUIssueNoInputs     = "no inputs should be consumed when issuing an IOU"
	ruleIOUIssueOneOutput    = "only one output state should be created when issuing an IOU"
	ruleIOUSelfLending       = "the lender and the borrower cannot be the same entity"
	ruleIOUValuePositive     = "the IOU value must be greater than zero"
	ruleIOUDeleteInputs      = "deleting an IOU must consume exactly one IOU and one wallet"
	ruleIOUDeleteNoIOUOutput = "no IOU output should be created when deleting an IOU"
	ruleIOUDeleteNeedsSettle = "an IOU can only be deleted by settling it against a wallet"
)

func verifyIOUIssue(tx *models.Transaction, cmd models.Command) error {
	if len(tx.Inputs) != 0 {
		return reject(cmd.Type, ruleIOUIssueNoInputs)
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Data.Contract != models.ContractIOU {
		return reject(cmd.Type, ruleIOUIssueOneOutput)
	}
	out := tx.Outputs[0].Data
	if out.IOU.Lender == out.IOU.Borrower {
		return reject(cmd.Type, ruleIOUSelfLending)
	}
	if out.IOU.Value.Sign() <= 0 {
		return reject(cmd.Type, ruleIOUValuePositive)
	}
	return signedByAll(cmd, out)
}

func verifyIOUDelete(tx *models.Transaction, cmd models.Command) error {
	wallet, iou, ok := walletAndIOUInputs(tx)
	if !ok {
		return reject(cmd.Type, ruleIOUDeleteInputs)
	}
	if _, ok := tx.Command(models.CommandWalletSettle); !ok {
		return reject(cmd.Type, ruleIOUDeleteNeedsSettle)
	}
	if iou.Lender != wallet.Owner {
		return reject(cmd.Type, ruleSettleLenderIsOwner)
	}
	if iou.Value.GreaterThan(wallet.Amount) {
		return reject(cmd.Type, ruleSettleCovered)
	}
	if err := signedByAll(cmd, models.IOUContractState(iou)); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if out.Data.Contract == models.ContractIOU {
			return reject(cmd.Type, ruleIOUDeleteNoIOUOutput)
		}
	}
	return nil
}

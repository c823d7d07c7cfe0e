package flows

import (
	"context"
	"fmt"

	"github.com/cpacia/iouledger/models"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

// IssueIOU records that counterparty owes value to this node. The
// counterparty must sign as borrower.
func (f *Flows) IssueIOU(ctx context.Context, value decimal.Decimal, counterparty peer.ID) (*models.IOUState, error) {
	tracker := f.newTracker(FlowIssueIOU)

	tracker.Set(StepGenerate)
	notary, err := f.cfg.Selector.Select()
	if err != nil {
		return nil, tracker.fail(err)
	}
	iou := models.NewIOUState(f.cfg.Identity, counterparty, value)
	tx, err := f.builder.Build(ctx,
		[]models.Command{{Type: models.CommandIOUIssue, Signers: []peer.ID{f.cfg.Identity, counterparty}}},
		nil,
		[]models.ContractState{models.IOUContractState(iou)},
		notary,
	)
	if err != nil {
		return nil, tracker.fail(err)
	}

	stx, err := f.sign(tracker, tx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepCollectSignatures)
	session, err := f.cfg.Network.InitiateSession(ctx, counterparty, FlowIssueIOU)
	if err != nil {
		return nil, tracker.fail(err)
	}
	defer session.Close()

	if err := f.collectSignature(ctx, session, stx); err != nil {
		return nil, tracker.fail(err)
	}

	ft, err := f.finalize(ctx, tracker, stx, session)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepDone)
	return ft.Tx.Outputs[0].Data.IOU, nil
}

// SettleIOU pays off an IOU from one of our wallets. The IOU is deleted
// and the wallet's amount drops by the IOU value. This node must be both
// the lender and the wallet owner; the borrower signs the deletion.
func (f *Flows) SettleIOU(ctx context.Context, iouID, walletID uuid.UUID, memo string) (*models.WalletState, error) {
	tracker := f.newTracker(FlowSettleIOU)

	tracker.Set(StepQueryIOU)
	iouIn, err := f.cfg.Vault.FindUnconsumed(iouID, models.ContractIOU)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepQueryWallet)
	walletIn, err := f.cfg.Vault.FindUnconsumed(walletID, models.ContractWallet)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepAuthorize)
	iou, wallet := iouIn.State.Data.IOU, walletIn.State.Data.Wallet
	if iou.Lender != f.cfg.Identity {
		return nil, tracker.fail(&models.AuthorizationError{Role: "IOU lender", Expected: iou.Lender, Actual: f.cfg.Identity})
	}
	if wallet.Owner != f.cfg.Identity {
		return nil, tracker.fail(&models.AuthorizationError{Role: "wallet owner", Expected: wallet.Owner, Actual: f.cfg.Identity})
	}

	tracker.Set(StepGenerate)
	next := wallet.Successor(wallet.Amount.Sub(iou.Value), SettleMovement(iou.LinearID, memo))
	tx, err := f.builder.Build(ctx,
		[]models.Command{
			{Type: models.CommandIOUDelete, Signers: []peer.ID{iou.Lender, iou.Borrower}},
			{Type: models.CommandWalletSettle, Signers: []peer.ID{wallet.Owner}},
		},
		[]models.StateAndRef{*walletIn, *iouIn},
		[]models.ContractState{models.WalletContractState(next)},
		walletIn.State.Notary,
	)
	if err != nil {
		return nil, tracker.fail(err)
	}

	stx, err := f.sign(tracker, tx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepCollectSignatures)
	session, err := f.cfg.Network.InitiateSession(ctx, iou.Borrower, FlowSettleIOU)
	if err != nil {
		return nil, tracker.fail(err)
	}
	defer session.Close()

	if err := f.collectSignature(ctx, session, stx); err != nil {
		return nil, tracker.fail(err)
	}

	ft, err := f.finalize(ctx, tracker, stx, session)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepDone)
	return ft.Tx.Outputs[0].Data.Wallet, nil
}

// SettleMovement is the last movement recorded on a wallet that settled
// the IOU with the given linear ID.
func SettleMovement(iouID uuid.UUID, memo string) string {
	return fmt.Sprintf("settle IOU %s: %s", iouID, memo)
}

package flows

import (
	"context"

	"github.com/cpacia/iouledger/models"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

// IssueWallet creates a new wallet owned by this node. The notary is
// picked at random from the configured notaries.
func (f *Flows) IssueWallet(ctx context.Context, amount decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	tracker := f.newTracker(FlowIssueWallet)

	tracker.Set(StepGenerate)
	notary, err := f.cfg.Selector.Select()
	if err != nil {
		return nil, tracker.fail(err)
	}
	wallet := models.NewWalletState(f.cfg.Identity, amount, lastMovement)
	tx, err := f.builder.Build(ctx,
		[]models.Command{{Type: models.CommandWalletIssue, Signers: []peer.ID{f.cfg.Identity}}},
		nil,
		[]models.ContractState{models.WalletContractState(wallet)},
		notary,
	)
	if err != nil {
		return nil, tracker.fail(err)
	}

	stx, err := f.sign(tracker, tx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	ft, err := f.finalize(ctx, tracker, stx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepDone)
	return ft.Tx.Outputs[0].Data.Wallet, nil
}

// UpdateWallet adds delta, which may be negative, to the current version
// of the wallet. Only the owner may update a wallet.
func (f *Flows) UpdateWallet(ctx context.Context, linearID uuid.UUID, delta decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	tracker := f.newTracker(FlowUpdateWallet)

	tracker.Set(StepQuery)
	input, err := f.cfg.Vault.FindUnconsumed(linearID, models.ContractWallet)
	if err != nil {
		return nil, tracker.fail(err)
	}
	old := input.State.Data.Wallet
	if old.Owner != f.cfg.Identity {
		return nil, tracker.fail(&models.AuthorizationError{
			Role:     "wallet owner",
			Expected: old.Owner,
			Actual:   f.cfg.Identity,
		})
	}

	tracker.Set(StepGenerate)
	next := old.Successor(old.Amount.Add(delta), lastMovement)
	tx, err := f.builder.Build(ctx,
		[]models.Command{{Type: models.CommandWalletUpdate, Signers: []peer.ID{f.cfg.Identity}}},
		[]models.StateAndRef{*input},
		[]models.ContractState{models.WalletContractState(next)},
		"",
	)
	if err != nil {
		return nil, tracker.fail(err)
	}

	stx, err := f.sign(tracker, tx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	ft, err := f.finalize(ctx, tracker, stx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepDone)
	return ft.Tx.Outputs[0].Data.Wallet, nil
}

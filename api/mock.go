package api

import (
	"context"

	"github.com/cpacia/iouledger/models"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

type mockNode struct {
	identityFunc         func() peer.ID
	peersFunc            func() []peer.ID
	notariesFunc         func() []peer.ID
	issueWalletFunc      func(ctx context.Context, amount decimal.Decimal, lastMovement string) (*models.WalletState, error)
	updateWalletFunc     func(ctx context.Context, linearID uuid.UUID, delta decimal.Decimal, lastMovement string) (*models.WalletState, error)
	settleIOUFunc        func(ctx context.Context, iouLinearID, walletLinearID uuid.UUID, memo string) (*models.WalletState, error)
	issueIOUFunc         func(ctx context.Context, value decimal.Decimal, counterparty peer.ID) (*models.IOUState, error)
	getMyWalletsFunc     func() ([]models.StateAndRef, error)
	getWalletHistoryFunc func() ([]models.StateAndRef, error)
	getIOUsFunc          func() ([]models.StateAndRef, error)
	getMyIOUsFunc        func() ([]models.StateAndRef, error)
	getTransactionFunc   func(id string) (*models.FinalizedTransaction, error)
}

func (m *mockNode) Identity() peer.ID {
	return m.identityFunc()
}
func (m *mockNode) Peers() []peer.ID {
	return m.peersFunc()
}
func (m *mockNode) Notaries() []peer.ID {
	return m.notariesFunc()
}
func (m *mockNode) IssueWallet(ctx context.Context, amount decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	return m.issueWalletFunc(ctx, amount, lastMovement)
}
func (m *mockNode) UpdateWallet(ctx context.Context, linearID uuid.UUID, delta decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	return m.updateWalletFunc(ctx, linearID, delta, lastMovement)
}
func (m *mockNode) SettleIOU(ctx context.Context, iouLinearID, walletLinearID uuid.UUID, memo string) (*models.WalletState, error) {
	return m.settleIOUFunc(ctx, iouLinearID, walletLinearID, memo)
}
func (m *mockNode) IssueIOU(ctx context.Context, value decimal.Decimal, counterparty peer.ID) (*models.IOUState, error) {
	return m.issueIOUFunc(ctx, value, counterparty)
}
func (m *mockNode) GetMyWallets() ([]models.StateAndRef, error) {
	return m.getMyWalletsFunc()
}
func (m *mockNode) GetWalletHistory() ([]models.StateAndRef, error) {
	return m.getWalletHistoryFunc()
}
func (m *mockNode) GetIOUs() ([]models.StateAndRef, error) {
	return m.getIOUsFunc()
}
func (m *mockNode) GetMyIOUs() ([]models.StateAndRef, error) {
	return m.getMyIOUsFunc()
}
func (m *mockNode) GetTransaction(id string) (*models.FinalizedTransaction, error) {
	return m.getTransactionFunc(id)
}

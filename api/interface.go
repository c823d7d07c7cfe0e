package api

import (
	"context"

	"github.com/cpacia/iouledger/models"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

// CoreIface is used to get around a circular import of the Core package.
type CoreIface interface {
	Identity() peer.ID
	Peers() []peer.ID
	Notaries() []peer.ID
	IssueWallet(ctx context.Context, amount decimal.Decimal, lastMovement string) (*models.WalletState, error)
	UpdateWallet(ctx context.Context, linearID uuid.UUID, delta decimal.Decimal, lastMovement string) (*models.WalletState, error)
	SettleIOU(ctx context.Context, iouLinearID, walletLinearID uuid.UUID, memo string) (*models.WalletState, error)
	IssueIOU(ctx context.Context, value decimal.Decimal, counterparty peer.ID) (*models.IOUState, error)
	GetMyWallets() ([]models.StateAndRef, error)
	GetWalletHistory() ([]models.StateAndRef, error)
	GetIOUs() ([]models.StateAndRef, error)
	GetMyIOUs() ([]models.StateAndRef, error)
	GetTransaction(id string) (*models.FinalizedTransaction, error)
}

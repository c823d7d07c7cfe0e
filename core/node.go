package core

import (
	"context"

	"github.com/cpacia/iouledger/api"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/flows"
	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	"github.com/cpacia/iouledger/notary"
	"github.com/cpacia/iouledger/notifications"
	"github.com/cpacia/iouledger/repo"
	"github.com/cpacia/iouledger/vault"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LedgerNode holds all the components that make up a node on the
// ledger network. It also exposes an exported API which can be used
// to control the node.
type LedgerNode struct {

	// host is the libp2p host all sessions run over.
	host host.Host

	// repo holds the database and data directory.
	repo *repo.Repo

	// identityKey signs transactions. Its public key is embedded in
	// the node's peer ID.
	identityKey crypto.PrivKey

	// networkService opens and accepts flow sessions.
	networkService *net.NetworkService

	// banManager holds the peers whose sessions are refused.
	banManager *net.BanManager

	// vault stores every state version and finalized transaction this
	// node participated in.
	vault *vault.Vault

	// flows runs the initiator side of every ledger operation and
	// answers proposals from counterparties.
	flows *flows.Flows

	// notaryService is only set when the node runs in notary mode.
	notaryService *notary.Service

	// selector picks the notary for newly issued states.
	selector notary.Selector

	// bootstrapPeers are connected to when the node starts.
	bootstrapPeers []peer.AddrInfo

	eventBus events.Bus
	notifier *notifications.Notifier
	gateway  *api.Gateway

	testnet bool

	// shutdown is closed when the node is stopped. Any listening
	// goroutines can use this to terminate.
	shutdown chan struct{}
}

var _ api.CoreIface = (*LedgerNode)(nil)

// ErrFlowsActive is returned by Stop when flows are still running.
var ErrFlowsActive = errors.New("flows are in progress")

// Start gets the node up and running. The gateway, if configured, is
// served in a new goroutine.
func (n *LedgerNode) Start() {
	go n.notifier.Start()
	go n.connectBootstrapPeers()

	if n.gateway != nil {
		go func() {
			if err := n.gateway.Serve(); err != nil {
				log.Debugf("Gateway stopped: %s", err)
			}
		}()
	}
}

// Stop cleanly shuts down the LedgerNode and signals to any listening
// goroutines that it's time to stop. Unless force is set, a node with
// flows in progress is left running and ErrFlowsActive is returned.
func (n *LedgerNode) Stop(force bool) error {
	if !force && n.flows.Active() > 0 {
		return ErrFlowsActive
	}
	n.stopServices()
	n.repo.Close()
	return nil
}

// ActiveFlows returns the number of flows and acceptors in progress.
func (n *LedgerNode) ActiveFlows() int {
	return n.flows.Active()
}

// DestroyNode shutsdown the node and deletes the entire data directory.
// This should only be used during testing as destroying a live node will
// result in data loss.
func (n *LedgerNode) DestroyNode() error {
	n.stopServices()
	return n.repo.DestroyRepo()
}

func (n *LedgerNode) stopServices() {
	close(n.shutdown)
	n.notifier.Stop()
	if n.gateway != nil {
		n.gateway.Close()
	}
	n.networkService.Close()
	n.host.Close()
}

// Identity returns the peer ID for this node.
func (n *LedgerNode) Identity() peer.ID {
	return n.host.ID()
}

// Host returns the underlying libp2p host.
func (n *LedgerNode) Host() host.Host {
	return n.host
}

// IsNotary returns whether this node runs the notary service.
func (n *LedgerNode) IsNotary() bool {
	return n.notaryService != nil
}

// SubscribeEvent returns a subscription to the provided event. The
// subscription must be closed when no longer in use.
func (n *LedgerNode) SubscribeEvent(event interface{}) (events.Subscription, error) {
	return n.eventBus.Subscribe(event)
}

// BanManager returns the node's ban manager.
func (n *LedgerNode) BanManager() *net.BanManager {
	return n.banManager
}

// Peers returns the connected peers that are not notaries.
func (n *LedgerNode) Peers() []peer.ID {
	notaries := make(map[peer.ID]bool)
	for _, p := range n.selector.Notaries() {
		notaries[p] = true
	}
	var peers []peer.ID
	for _, p := range n.host.Network().Peers() {
		if !notaries[p] {
			peers = append(peers, p)
		}
	}
	return peers
}

// Notaries returns the notaries this node may finalize with.
func (n *LedgerNode) Notaries() []peer.ID {
	return n.selector.Notaries()
}

// IssueWallet creates a new wallet owned by this node.
func (n *LedgerNode) IssueWallet(ctx context.Context, amount decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	return n.flows.IssueWallet(ctx, amount, lastMovement)
}

// UpdateWallet adds delta to the balance of one of our wallets.
func (n *LedgerNode) UpdateWallet(ctx context.Context, linearID uuid.UUID, delta decimal.Decimal, lastMovement string) (*models.WalletState, error) {
	return n.flows.UpdateWallet(ctx, linearID, delta, lastMovement)
}

// IssueIOU records that counterparty owes us value.
func (n *LedgerNode) IssueIOU(ctx context.Context, value decimal.Decimal, counterparty peer.ID) (*models.IOUState, error) {
	return n.flows.IssueIOU(ctx, value, counterparty)
}

// SettleIOU retires one of our IOUs by debiting its value from one of
// our wallets.
func (n *LedgerNode) SettleIOU(ctx context.Context, iouLinearID, walletLinearID uuid.UUID, memo string) (*models.WalletState, error) {
	return n.flows.SettleIOU(ctx, iouLinearID, walletLinearID, memo)
}

// GetMyWallets returns the current version of every wallet we own.
func (n *LedgerNode) GetMyWallets() ([]models.StateAndRef, error) {
	return n.vault.ListByOwner(n.Identity(), models.ContractWallet, models.StatusUnconsumed)
}

// GetWalletHistory returns every version of every wallet we own, newest
// first.
func (n *LedgerNode) GetWalletHistory() ([]models.StateAndRef, error) {
	return n.vault.ListByOwner(n.Identity(), models.ContractWallet, models.StatusAll)
}

// GetIOUs returns the outstanding IOUs we are lender or borrower on.
func (n *LedgerNode) GetIOUs() ([]models.StateAndRef, error) {
	return n.vault.ListByParticipant(n.Identity(), models.ContractIOU, models.StatusUnconsumed)
}

// GetMyIOUs returns the outstanding IOUs we are the lender on.
func (n *LedgerNode) GetMyIOUs() ([]models.StateAndRef, error) {
	return n.vault.ListByOwner(n.Identity(), models.ContractIOU, models.StatusUnconsumed)
}

// GetTransaction returns a finalized transaction from the vault.
func (n *LedgerNode) GetTransaction(id string) (*models.FinalizedTransaction, error) {
	return n.vault.GetTransaction(id)
}

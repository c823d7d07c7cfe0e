// Package flows runs the multi-party protocols that move the ledger
// forward. Each flow is a small state machine driven by a ProgressTracker:
// it queries the vault, builds and verifies a transaction, collects the
// counterparty's signature, and has the notary finalize it.
package flows

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cpacia/iouledger/contracts"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	"github.com/cpacia/iouledger/notary"
	"github.com/cpacia/iouledger/txbuilder"
	"github.com/cpacia/iouledger/vault"
	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("FLOW")

// Flow names. Flows with a counterparty use the name as the session flow.
const (
	FlowIssueWallet  = "IssueWallet"
	FlowUpdateWallet = "UpdateWallet"
	FlowSettleIOU    = "SettleIOU"
	FlowIssueIOU     = "IssueIOU"
	FlowNotaryChange = "NotaryChange"
)

// acceptorTimeout bounds how long an acceptor waits on the initiator.
const acceptorTimeout = time.Minute * 2

// NotaryClient finalizes fully signed transactions.
type NotaryClient interface {
	Finalize(ctx context.Context, stx *models.SignedTransaction) (*models.FinalizedTransaction, error)
}

// Config holds everything a flow needs. Flows keep no other state.
type Config struct {
	Identity peer.ID
	Key      crypto.PrivKey
	Vault    *vault.Vault
	Notary   NotaryClient
	Selector notary.Selector
	Network  *net.NetworkService
	Bus      events.Bus
}

// Flows starts flows and answers the counterparty side of them.
type Flows struct {
	// active counts flow and acceptor instances that have not reached
	// Done or Failed. Kept first for 64-bit atomic alignment.
	active int64

	cfg     Config
	builder *txbuilder.Builder

	// pending holds transactions whose notarization outcome is unknown
	// after a transport failure, by ID.
	pendingMtx sync.Mutex
	pending    map[string]*models.SignedTransaction
}

// New returns a Flows. Inputs held at a different notary than the one a
// transaction is pinned to are moved with the NotaryChange flow, once the
// transaction has passed its contract rules.
func New(cfg Config) *Flows {
	f := &Flows{
		cfg:     cfg,
		pending: make(map[string]*models.SignedTransaction),
	}
	f.builder = txbuilder.NewBuilder(f, txbuilder.WithValidator(contracts.Verify))
	return f
}

// RegisterAcceptors answers proposals for the flows that need this node's
// signature as a counterparty.
func (f *Flows) RegisterAcceptors() {
	f.cfg.Network.RegisterSessionHandler(FlowIssueIOU, f.acceptor(FlowIssueIOU, checkIssueIOU))
	f.cfg.Network.RegisterSessionHandler(FlowSettleIOU, f.acceptor(FlowSettleIOU, checkSettleIOU))
	f.cfg.Network.RegisterSessionHandler(FlowNotaryChange, f.acceptor(FlowNotaryChange, checkNotaryChange))
}

// Active returns the number of flows and acceptors currently running.
func (f *Flows) Active() int {
	return int(atomic.LoadInt64(&f.active))
}

func (f *Flows) newTracker(flow string) *ProgressTracker {
	atomic.AddInt64(&f.active, 1)
	tracker := NewProgressTracker(f.cfg.Bus, flow)
	tracker.onEnd = func() { atomic.AddInt64(&f.active, -1) }
	return tracker
}

func (f *Flows) emit(evt interface{}) {
	if f.cfg.Bus != nil {
		f.cfg.Bus.Emit(evt)
	}
}

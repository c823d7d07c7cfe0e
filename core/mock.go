package core

import (
	"context"
	"fmt"

	"github.com/cpacia/iouledger/net"
	"github.com/cpacia/iouledger/notifications"
	"github.com/cpacia/iouledger/repo"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	peer "github.com/libp2p/go-libp2p-core/peer"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	ma "github.com/multiformats/go-multiaddr"
)

// Mocknet represents a network of connected mock nodes.
type Mocknet struct {
	nodes    []*LedgerNode
	notaries []peer.ID
	net      mocknet.Mocknet
}

// NewMocknet returns numNotaries nodes running the notary service followed
// by numNodes plain nodes, linked and connected over an in-memory network.
// Every node may use every notary.
func NewMocknet(numNotaries, numNodes int) (*Mocknet, error) {
	mn := mocknet.New(context.Background())

	type member struct {
		repo *repo.Repo
		sk   crypto.PrivKey
		host host.Host
	}
	members := make([]member, 0, numNotaries+numNodes)
	for i := 0; i < numNotaries+numNodes; i++ {
		r, err := repo.MockRepo()
		if err != nil {
			return nil, err
		}
		sk, err := r.IdentityKey()
		if err != nil {
			return nil, err
		}
		addr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", 4101+i))
		if err != nil {
			return nil, err
		}
		h, err := mn.AddPeer(sk, addr)
		if err != nil {
			return nil, err
		}
		members = append(members, member{r, sk, h})
	}

	notaries := make([]peer.ID, 0, numNotaries)
	for _, m := range members[:numNotaries] {
		notaries = append(notaries, m.host.ID())
	}

	nodes := make([]*LedgerNode, 0, len(members))
	for i, m := range members {
		node, err := newLedgerNode(m.repo, m.host, m.sk, notaries, i < numNotaries, net.NewBanManager(nil), true)
		if err != nil {
			return nil, err
		}
		node.notifier = notifications.NewNotifier(node.eventBus, m.repo.DB(), func(interface{}) error { return nil })
		nodes = append(nodes, node)
	}

	if err := mn.LinkAll(); err != nil {
		return nil, err
	}
	if err := mn.ConnectAllButSelf(); err != nil {
		return nil, err
	}

	return &Mocknet{nodes: nodes, notaries: notaries, net: mn}, nil
}

// Nodes returns the ledger nodes in this network. Notary nodes come first.
func (mn *Mocknet) Nodes() []*LedgerNode {
	return mn.nodes
}

// Notaries returns the peer IDs of the notary nodes.
func (mn *Mocknet) Notaries() []peer.ID {
	return mn.notaries
}

// Peers returns the peer IDs of the nodes in the network.
func (mn *Mocknet) Peers() []peer.ID {
	return mn.net.Peers()
}

// StartAll starts all nodes in the network.
func (mn *Mocknet) StartAll() {
	for _, n := range mn.nodes {
		n.Start()
	}
}

// TearDown shutsdown the network and destroys the data directories.
func (mn *Mocknet) TearDown() error {
	for _, n := range mn.nodes {
		if err := n.DestroyNode(); err != nil {
			return err
		}
	}
	return nil
}

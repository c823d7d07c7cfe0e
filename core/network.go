package core

import (
	"context"
	"sync"
	"time"

	"github.com/cpacia/iouledger/events"
	inet "github.com/libp2p/go-libp2p-core/network"
	peer "github.com/libp2p/go-libp2p-core/peer"
)

const bootstrapTimeout = time.Second * 30

// connectBootstrapPeers dials every bootstrap peer in parallel. Failures
// are logged and otherwise ignored.
func (n *LedgerNode) connectBootstrapPeers() {
	if len(n.bootstrapPeers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	go func() {
		select {
		case <-n.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	for _, pi := range n.bootstrapPeers {
		wg.Add(1)
		go func(pi peer.AddrInfo) {
			defer wg.Done()
			if err := n.host.Connect(ctx, pi); err != nil {
				log.Warningf("Failed to connect to bootstrap peer %s: %s", pi.ID.Pretty(), err)
				return
			}
			log.Debugf("Connected to bootstrap peer %s", pi.ID.Pretty())
		}(pi)
	}
	wg.Wait()
}

// listenNetworkEvents relays connection changes onto the event bus.
func (n *LedgerNode) listenNetworkEvents() {
	connected := func(_ inet.Network, conn inet.Conn) {
		n.eventBus.Emit(&events.PeerConnected{Peer: conn.RemotePeer()})
	}
	disConnected := func(net inet.Network, conn inet.Conn) {
		if net.Connectedness(conn.RemotePeer()) == inet.Connected {
			return
		}
		n.eventBus.Emit(&events.PeerDisconnected{Peer: conn.RemotePeer()})
	}

	notifier := &inet.NotifyBundle{
		ConnectedF:    connected,
		DisconnectedF: disConnected,
	}

	n.host.Network().Notify(notifier)
}

package events

import peer "github.com/libp2p/go-libp2p-core/peer"

// PeerConnected is emitted when a connection to a peer opens.
type PeerConnected struct {
	Peer peer.ID
}

// PeerDisconnected is emitted when the last connection to a peer closes.
type PeerDisconnected struct {
	Peer peer.ID
}

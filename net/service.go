package net

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cpacia/iouledger/models"
	"github.com/libp2p/go-libp2p-core/host"
	inet "github.com/libp2p/go-libp2p-core/network"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("NET")

var (
	// ErrUnexpectedMessage is returned when a session frame is not the
	// type the flow is waiting for.
	ErrUnexpectedMessage = errors.New("unexpected message type")

	// ErrBannedPeer is returned when opening a session with a banned peer.
	ErrBannedPeer = errors.New("peer is banned")
)

// openTimeout bounds how long an inbound stream may take to name its flow.
const openTimeout = time.Second * 30

// SessionHandler runs the responding side of a flow. The session is
// closed when the handler returns.
type SessionHandler func(ctx context.Context, s *Session)

// NetworkService opens and dispatches flow sessions. Each session is its
// own libp2p stream so sessions with the same peer run independently.
type NetworkService struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	host host.Host

	handlers   map[string]SessionHandler
	handlerMtx sync.RWMutex

	banManager *BanManager

	protocolID protocol.ID
}

// NewNetworkService registers the session protocol on the host.
func NewNetworkService(host host.Host, banManager *BanManager, useTestnet bool) *NetworkService {
	ctx, cancel := context.WithCancel(context.Background())
	protocolID := ProtocolSessionMainnet
	if useTestnet {
		protocolID = ProtocolSessionTestnet
	}
	ns := &NetworkService{
		ctx:        ctx,
		ctxCancel:  cancel,
		host:       host,
		handlers:   make(map[string]SessionHandler),
		handlerMtx: sync.RWMutex{},
		banManager: banManager,
		protocolID: protocol.ID(protocolID),
	}
	host.SetStreamHandler(ns.protocolID, ns.HandleNewStream)
	return ns
}

// Close stops accepting sessions and cancels running handlers.
func (ns *NetworkService) Close() {
	ns.host.RemoveStreamHandler(ns.protocolID)
	ns.ctxCancel()
}

// RegisterSessionHandler sets the handler for inbound sessions of a flow.
func (ns *NetworkService) RegisterSessionHandler(flow string, handler SessionHandler) {
	ns.handlerMtx.Lock()
	defer ns.handlerMtx.Unlock()
	ns.handlers[flow] = handler
}

// InitiateSession opens a new stream to the peer and announces the flow.
func (ns *NetworkService) InitiateSession(ctx context.Context, peerID peer.ID, flow string) (*Session, error) {
	if ns.banManager.IsBanned(peerID) {
		return nil, ErrBannedPeer
	}
	s, err := ns.host.NewStream(ctx, peerID, ns.protocolID)
	if err != nil {
		return nil, &models.TransportError{Peer: peerID, Err: err}
	}
	session := newSession(flow, s)
	if err := session.send(ctx, &Message{Type: MessageOpen, Flow: flow}); err != nil {
		return nil, err
	}
	log.Debugf("Opened %s session with %s", flow, peerID)
	return session, nil
}

// HandleNewStream receives new incoming streams from other peers. Every
// stream is a single session and the first frame names the flow it
// belongs to.
func (ns *NetworkService) HandleNewStream(s inet.Stream) {
	go ns.handleNewSession(s)
}

func (ns *NetworkService) handleNewSession(s inet.Stream) {
	remotePeer := s.Conn().RemotePeer()
	if ns.banManager.IsBanned(remotePeer) {
		log.Debugf("Received new stream request from banned peer %s. Closing.", remotePeer)
		s.Reset()
		return
	}

	session := newSession("", s)
	defer session.Close()

	ctx, cancel := context.WithTimeout(ns.ctx, openTimeout)
	msg, err := session.Receive(ctx)
	cancel()
	if err != nil {
		log.Debugf("Peer %s closed stream before opening a session: %s", remotePeer, err)
		return
	}
	if msg.Type != MessageOpen {
		log.Warningf("Peer %s sent %s before opening a session", remotePeer, msg.Type)
		session.Reset()
		return
	}
	session.flow = msg.Flow

	ns.handlerMtx.RLock()
	handler, ok := ns.handlers[msg.Flow]
	ns.handlerMtx.RUnlock()
	if !ok {
		log.Warningf("Received session for flow %s with unregistered handler", msg.Flow)
		session.Reject(ns.ctx, fmt.Sprintf("unknown flow %s", msg.Flow))
		return
	}

	log.Debugf("Received %s session from %s", msg.Flow, remotePeer)
	handler(ns.ctx, session)
}

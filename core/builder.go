package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cpacia/iouledger/api"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/flows"
	"github.com/cpacia/iouledger/net"
	"github.com/cpacia/iouledger/notary"
	"github.com/cpacia/iouledger/notifications"
	"github.com/cpacia/iouledger/repo"
	"github.com/cpacia/iouledger/vault"
	"github.com/cpacia/iouledger/version"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	peer "github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
	manet "github.com/multiformats/go-multiaddr-net"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("CORE")

// NewNode constructs and returns a LedgerNode using the given cfg. On
// error everything opened so far is closed again.
func NewNode(ctx context.Context, cfg *repo.Config) (node *LedgerNode, err error) {
	r, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	repo.SetupLogging(cfg.LogDir, cfg.LogLevel)

	sk, err := r.IdentityKey()
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(ctx,
		libp2p.Identity(sk),
		libp2p.ListenAddrStrings(cfg.SwarmAddrs...),
		libp2p.UserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "starting libp2p host")
	}
	defer func() {
		if err != nil {
			if cerr := h.Close(); cerr != nil {
				log.Errorf("Error closing libp2p host: %s", cerr)
			}
		}
	}()

	bootstrapPeers, err := resolveBootstrapAddrs(ctx, cfg.BootstrapAddrs)
	if err != nil {
		return nil, err
	}

	notaries, err := parsePeerIDs(cfg.Notaries)
	if err != nil {
		return nil, errors.Wrap(err, "invalid notary peer ID in config")
	}
	if cfg.NotaryMode && !containsPeer(notaries, h.ID()) {
		notaries = append(notaries, h.ID())
	}
	if len(notaries) == 0 {
		log.Warning("No notaries configured. New wallets and IOUs can not be issued.")
	}

	blocked, err := net.ParseBlockedIDs(cfg.BlockedNodes)
	if err != nil {
		return nil, err
	}

	node, err = newLedgerNode(r, h, sk, notaries, cfg.NotaryMode, net.NewBanManager(blocked), cfg.Testnet)
	if err != nil {
		return nil, err
	}
	node.bootstrapPeers = bootstrapPeers

	notifyFunc := func(interface{}) error { return nil }
	if !cfg.DisableGateway {
		node.gateway, err = node.newHTTPGateway(cfg)
		if err != nil {
			close(node.shutdown)
			node.networkService.Close()
			return nil, err
		}
		notifyFunc = node.gateway.NotifyWebsockets
	}
	node.notifier = notifications.NewNotifier(node.eventBus, r.DB(), notifyFunc)

	return node, nil
}

// newLedgerNode wires the ledger components around an existing host. The
// caller sets the notifier and, optionally, the gateway.
func newLedgerNode(r *repo.Repo, h host.Host, sk crypto.PrivKey, notaries []peer.ID, notaryMode bool, bm *net.BanManager, testnet bool) (*LedgerNode, error) {
	var (
		bus         = events.NewBus()
		service     = net.NewNetworkService(h, bm, testnet)
		ledgerVault = vault.New(r.DB(), bus)
		selector    = notary.NewRandomSelector(notaries)
	)

	var (
		notaryService *notary.Service
		err           error
	)
	if notaryMode {
		notaryService, err = notary.NewService(r.DB(), sk)
		if err != nil {
			return nil, err
		}
		notaryService.Register(service)
		log.Notice("Notary service enabled")
	}

	f := flows.New(flows.Config{
		Identity: h.ID(),
		Key:      sk,
		Vault:    ledgerVault,
		Notary:   notary.NewClient(notaryService, service),
		Selector: selector,
		Network:  service,
		Bus:      bus,
	})
	f.RegisterAcceptors()

	node := &LedgerNode{
		host:           h,
		repo:           r,
		identityKey:    sk,
		networkService: service,
		banManager:     bm,
		vault:          ledgerVault,
		flows:          f,
		notaryService:  notaryService,
		selector:       selector,
		eventBus:       bus,
		testnet:        testnet,
		shutdown:       make(chan struct{}),
	}
	node.listenNetworkEvents()
	return node, nil
}

func (n *LedgerNode) newHTTPGateway(cfg *repo.Config) (*api.Gateway, error) {
	gatewayMaddr, err := ma.NewMultiaddr(cfg.GatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("newHTTPGateway: invalid gateway address: %q (err: %s)", cfg.GatewayAddr, err)
	}
	gwLis, err := manet.Listen(gatewayMaddr)
	if err != nil {
		return nil, fmt.Errorf("newHTTPGateway: manet.Listen(%s) failed: %s", gatewayMaddr, err)
	}

	allowedIPs := make(map[string]bool)
	for _, ip := range cfg.APIAllowedIPs {
		allowedIPs[ip] = true
	}

	// The gateway compares against the hash of the supplied password.
	var password string
	if cfg.APIPassword != "" {
		h := sha256.Sum256([]byte(cfg.APIPassword))
		password = hex.EncodeToString(h[:])
	}

	config := &api.GatewayConfig{
		Listener:   manet.NetListener(gwLis),
		NoCors:     cfg.APINoCors,
		Username:   cfg.APIUsername,
		Password:   password,
		Cookie:     cfg.APICookie,
		PublicOnly: cfg.APIPublicOnly,
		AllowedIPs: allowedIPs,
	}

	return api.NewGateway(n, config)
}

// resolveBootstrapAddrs resolves any /dns addresses and groups the
// results by peer.
func resolveBootstrapAddrs(ctx context.Context, addrs []string) ([]peer.AddrInfo, error) {
	var maddrs []ma.Multiaddr
	for _, addr := range addrs {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid bootstrap address %s", addr)
		}
		if madns.Matches(maddr) {
			resolved, err := madns.Resolve(ctx, maddr)
			if err != nil {
				log.Warningf("Unable to resolve bootstrap address %s: %s", addr, err)
				continue
			}
			maddrs = append(maddrs, resolved...)
			continue
		}
		maddrs = append(maddrs, maddr)
	}
	return peer.AddrInfosFromP2pAddrs(maddrs...)
}

func parsePeerIDs(ids []string) ([]peer.ID, error) {
	ret := make([]peer.ID, 0, len(ids))
	for _, s := range ids {
		pid, err := peer.Decode(s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, pid)
	}
	return ret, nil
}

func containsPeer(peers []peer.ID, p peer.ID) bool {
	for _, pid := range peers {
		if pid == p {
			return true
		}
	}
	return false
}

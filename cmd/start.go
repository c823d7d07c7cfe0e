package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/cpacia/iouledger/core"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/repo"
	"github.com/cpacia/iouledger/version"
	"github.com/fatih/color"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("CMD")

// Start is the main entry point for iouledger. The options to this
// command are the same as the ledger node config options.
type Start struct {
	repo.Config
}

// Execute starts the ledger node and blocks until it is interrupted.
func (x *Start) Execute(args []string) error {
	cfg, _, err := repo.LoadConfig()
	if err != nil {
		return err
	}

	n, err := core.NewNode(context.Background(), cfg)
	if err != nil {
		return err
	}
	printSplashScreen(n.IsNotary())
	log.Infof("PeerID: %s", n.Identity())
	n.Start()
	printSwarmAddrs(n.Host())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	return shutdown(n, c)
}

// shutdown stops the node once no flows are in progress. A flow that is
// waiting on a counterparty or the notary would otherwise leave the
// counterparty holding a signed proposal that never finalizes. A second
// interrupt forces the shutdown.
func shutdown(n *core.LedgerNode, interrupt <-chan os.Signal) error {
	if n.Stop(false) != core.ErrFlowsActive {
		log.Info("iouledger shutting down...")
		return nil
	}

	sub, err := n.SubscribeEvent(&events.FlowProgress{})
	if err != nil {
		return err
	}
	defer sub.Close()

	log.Infof("%d flows in progress. Press ctrl+c again to force shutdown.", n.ActiveFlows())
	for n.ActiveFlows() > 0 {
		select {
		case <-interrupt:
			log.Info("iouledger shutting down...")
			return n.Stop(true)
		case <-sub.Out():
		}
	}
	log.Info("iouledger shutting down...")
	return n.Stop(true)
}

func printSwarmAddrs(h host.Host) {
	var lisAddrs []string
	ifaceAddrs, err := h.Network().InterfaceListenAddresses()
	if err != nil {
		log.Errorf("failed to read listening addresses: %s", err)
	}
	for _, addr := range ifaceAddrs {
		lisAddrs = append(lisAddrs, addr.String())
	}
	sort.Strings(lisAddrs)
	for _, addr := range lisAddrs {
		fmt.Printf("Swarm listening on %s\n", addr)
	}
}

func printSplashScreen(notary bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	for _, l := range []string{
		` _               _          _`,
		`(_) ___  _   _  | | ___  __| | __ _  ___ _ __`,
		`| |/ _ \| | | | | |/ _ \/ _' |/ _' |/ _ \ '__|`,
		`| | (_) | |_| | | |  __/ (_| | (_| |  __/ |`,
		`|_|\___/ \__,_| |_|\___|\__,_|\__, |\___|_|`,
		`                               |___/`,
	} {
		if _, err := cyan.Println(l); err != nil {
			log.Debug(err)
			return
		}
	}

	mode := "node"
	if notary {
		mode = "notary"
	}
	color.New(color.FgWhite).Printf("\niouledger v%s (%s)\n\n", version.String(), mode)
}

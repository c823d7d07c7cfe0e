package core

import (
	"context"
	"fmt"
	"io/ioutil"
	gonet "net"
	"os"
	"testing"

	"github.com/cpacia/iouledger/repo"
)

func freeTCPPort(t *testing.T) int {
	l, err := gonet.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*gonet.TCPAddr).Port
}

func TestNewNode_ReleasesResourcesOnError(t *testing.T) {
	dataDir, err := ioutil.TempDir("", "iouledger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dataDir)

	port := freeTCPPort(t)
	newConfig := func() *repo.Config {
		return &repo.Config{
			DataDir:        dataDir,
			LogLevel:       "error",
			SwarmAddrs:     []string{fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", port)},
			GatewayAddr:    "/ip4/127.0.0.1/tcp/0",
			DisableGateway: true,
		}
	}

	tests := []struct {
		name   string
		modify func(cfg *repo.Config)
	}{
		{
			name: "bad bootstrap address",
			modify: func(cfg *repo.Config) {
				cfg.BootstrapAddrs = []string{"not a multiaddr"}
			},
		},
		{
			name: "bad notary ID",
			modify: func(cfg *repo.Config) {
				cfg.Notaries = []string{"xyz"}
			},
		},
		{
			name: "bad blocked node ID",
			modify: func(cfg *repo.Config) {
				cfg.BlockedNodes = []string{"xyz"}
			},
		},
		{
			name: "bad gateway address",
			modify: func(cfg *repo.Config) {
				cfg.DisableGateway = false
				cfg.GatewayAddr = "not a multiaddr"
			},
		},
	}

	for _, test := range tests {
		cfg := newConfig()
		test.modify(cfg)
		if _, err := NewNode(context.Background(), cfg); err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}

		// The swarm listener must be gone.
		l, err := gonet.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Errorf("%s: swarm port still bound: %s", test.name, err)
			continue
		}
		l.Close()
	}

	node, err := NewNode(context.Background(), newConfig())
	if err != nil {
		t.Fatalf("Node failed to start after earlier failures: %s", err)
	}
	node.Start()
	if err := node.Stop(true); err != nil {
		t.Error(err)
	}
}

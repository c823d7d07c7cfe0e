package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	peer "github.com/libp2p/go-libp2p-core/peer"
)

// sha256("letmein")
const testPasswordHash = "1c8bfe8f801d79745c4631d09fff36c82aa37fc4cce4fc946683d7b336b63032"

func TestGateway_AuthenticationMiddleware(t *testing.T) {
	gateway := &Gateway{
		node: &mockNode{
			notariesFunc: func() []peer.ID { return nil },
		},
		config: &GatewayConfig{},
	}

	r := gateway.newV1Router()
	r.Use(gateway.AuthenticationMiddleware)

	ts := httptest.NewServer(r)
	defer ts.Close()

	tests := []struct {
		name      string
		config    *GatewayConfig
		setup     func(req *http.Request)
		forbidden bool
	}{
		{
			name:   "no auth configured",
			config: &GatewayConfig{},
		},
		{
			name: "allowed ip",
			config: &GatewayConfig{
				AllowedIPs: map[string]bool{"127.0.0.1": true},
			},
		},
		{
			name: "ip not allowed",
			config: &GatewayConfig{
				AllowedIPs: map[string]bool{"197.2.18.3": true},
			},
			forbidden: true,
		},
		{
			name:   "valid cookie",
			config: &GatewayConfig{Cookie: "cookie_monster"},
			setup: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "cookie_monster"})
			},
		},
		{
			name:   "invalid cookie",
			config: &GatewayConfig{Cookie: "cookie_monster"},
			setup: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "asdfasdf"})
			},
			forbidden: true,
		},
		{
			name:      "missing cookie",
			config:    &GatewayConfig{Cookie: "cookie_monster"},
			forbidden: true,
		},
		{
			name:   "valid basic auth",
			config: &GatewayConfig{Username: "alice", Password: testPasswordHash},
			setup: func(req *http.Request) {
				req.SetBasicAuth("alice", "letmein")
			},
		},
		{
			name:   "wrong password",
			config: &GatewayConfig{Username: "alice", Password: testPasswordHash},
			setup: func(req *http.Request) {
				req.SetBasicAuth("alice", "asdf")
			},
			forbidden: true,
		},
		{
			name:   "wrong username",
			config: &GatewayConfig{Username: "alice", Password: testPasswordHash},
			setup: func(req *http.Request) {
				req.SetBasicAuth("bob", "letmein")
			},
			forbidden: true,
		},
		{
			name:      "missing basic auth",
			config:    &GatewayConfig{Username: "alice", Password: testPasswordHash},
			forbidden: true,
		},
	}
	for _, test := range tests {
		gateway.config = test.config
		req, err := http.NewRequest("GET", fmt.Sprintf("%s/v1/ledger/notaries", ts.URL), nil)
		if err != nil {
			t.Fatal(err)
		}
		if test.setup != nil {
			test.setup(req)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if test.forbidden && resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s: expected status forbidden, got %d", test.name, resp.StatusCode)
			continue
		}
		if !test.forbidden && resp.StatusCode == http.StatusForbidden {
			t.Errorf("%s: unexpected forbidden status", test.name)
		}
	}
}

func TestGateway_AuthorizeReasons(t *testing.T) {
	gateway := &Gateway{
		config: &GatewayConfig{
			AllowedIPs: map[string]bool{"::1": true},
			Cookie:     "cookie_monster",
			Username:   "alice",
			Password:   testPasswordHash,
		},
	}

	req := httptest.NewRequest("GET", "/v1/ledger/me", nil)
	req.RemoteAddr = "10.0.0.1:4002"
	if err := gateway.authorize(req); err != errIPNotAllowed {
		t.Errorf("Expected errIPNotAllowed, got %v", err)
	}

	req.RemoteAddr = "[::1]:4002"
	if err := gateway.authorize(req); err != errBadCookie {
		t.Errorf("Expected errBadCookie, got %v", err)
	}

	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "cookie_monster"})
	if err := gateway.authorize(req); err != errBadCredentials {
		t.Errorf("Expected errBadCredentials, got %v", err)
	}

	req.SetBasicAuth("alice", "letmein")
	if err := gateway.authorize(req); err != nil {
		t.Errorf("Expected request to be authorized, got %v", err)
	}
}

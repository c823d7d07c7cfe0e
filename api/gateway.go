package api

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("API")

type GatewayConfig struct {
	Listener   net.Listener
	NoCors     bool
	AllowedIPs map[string]bool
	Cookie     string
	Username   string
	Password   string
	PublicOnly bool
}

// Gateway represents an HTTP API gateway
type Gateway struct {
	listener net.Listener
	node     CoreIface
	handler  http.Handler
	config   *GatewayConfig
	hub      *hub
}

// NewGateway instantiates a new gateway serving the ledger API and the
// notification websocket.
func NewGateway(node CoreIface, config *GatewayConfig) (*Gateway, error) {
	var (
		g = &Gateway{
			node:     node,
			config:   config,
			listener: config.Listener,
			hub:      newHub(),
		}
		topMux = http.NewServeMux()
	)

	r := g.newV1Router()

	if !config.NoCors {
		r.Use(mux.CORSMethodMiddleware(r))
	}
	r.Use(g.AuthenticationMiddleware)

	topMux.Handle("/v1/ledger/", r)
	topMux.Handle("/ws", g.AuthenticationMiddleware(websocketHandler{hub: g.hub}))

	go g.hub.run()

	g.handler = topMux
	return g, nil
}

// Close shuts down the Gateway listener and disconnects websocket clients.
func (g *Gateway) Close() error {
	g.hub.stop()
	return g.listener.Close()
}

// Serve begins listening on the configured address.
func (g *Gateway) Serve() error {
	log.Infof("Gateway/API server listening on %s\n", g.listener.Addr())
	return http.Serve(g.listener, g.handler)
}

// NotifyWebsockets sends the notification to every connected websocket.
func (g *Gateway) NotifyWebsockets(i interface{}) error {
	out, err := marshalAndSanitizeJSON(i)
	if err != nil {
		return err
	}
	g.hub.publish(out)
	return nil
}

func (g *Gateway) newV1Router() *mux.Router {
	r := mux.NewRouter()

	if !g.config.PublicOnly {
		r.HandleFunc("/v1/ledger/wallet", g.handlePOSTWallet).Methods("POST")
		r.HandleFunc("/v1/ledger/wallet", g.handlePUTWallet).Methods("PUT")
		r.HandleFunc("/v1/ledger/iou", g.handlePOSTIOU).Methods("POST")
		r.HandleFunc("/v1/ledger/settle", g.handlePOSTSettle).Methods("POST")
	}
	r.HandleFunc("/v1/ledger/me", g.handleGETMe).Methods("GET")
	r.HandleFunc("/v1/ledger/peers", g.handleGETPeers).Methods("GET")
	r.HandleFunc("/v1/ledger/notaries", g.handleGETNotaries).Methods("GET")
	r.HandleFunc("/v1/ledger/wallets", g.handleGETWallets).Methods("GET")
	r.HandleFunc("/v1/ledger/wallethistory", g.handleGETWalletHistory).Methods("GET")
	r.HandleFunc("/v1/ledger/ious", g.handleGETIOUs).Methods("GET")
	r.HandleFunc("/v1/ledger/myious", g.handleGETMyIOUs).Methods("GET")
	r.HandleFunc("/v1/ledger/transaction/{txID}", g.handleGETTransaction).Methods("GET")
	return r
}

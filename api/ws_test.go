package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestGateway_WebsocketNotification(t *testing.T) {
	gateway := &Gateway{hub: newHub(), config: &GatewayConfig{}}
	go gateway.hub.run()
	defer gateway.hub.stop()

	ts := httptest.NewServer(gateway.AuthenticationMiddleware(websocketHandler{hub: gateway.hub}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	type notification struct {
		Type string `json:"type"`
		Memo string `json:"memo"`
	}

	// The client is registered asynchronously after the handshake so keep
	// publishing until one arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(time.Millisecond * 50)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gateway.NotifyWebsockets(notification{Type: "TransactionFinalized", Memo: "<b>rent</b>"})
			case <-stop:
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(time.Second * 5))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var n notification
	if err := json.Unmarshal(msg, &n); err != nil {
		t.Fatal(err)
	}
	if n.Type != "TransactionFinalized" {
		t.Errorf("Expected TransactionFinalized, got %s", n.Type)
	}
	if n.Memo != "rent" {
		t.Errorf("Expected sanitized memo, got %q", n.Memo)
	}
}

func TestHub_PublishAfterStop(t *testing.T) {
	h := newHub()
	go h.run()
	h.stop()
	h.stop()

	done := make(chan struct{})
	go func() {
		h.publish([]byte("{}"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("publish blocked on a stopped hub")
	}
}

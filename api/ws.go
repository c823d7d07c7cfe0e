package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = (wsPongWait * 9) / 10
	wsMaxReadSize = 512
	wsSendBacklog = 64
)

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is a single notification subscriber. Notifications are one way so
// anything the client sends is discarded.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans finalized transaction notifications out to the connected
// websocket clients. A client that can't keep up is dropped rather than
// allowed to stall the broadcast.
type hub struct {
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	quit     chan struct{}
	quitOnce sync.Once
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			log.Debugf("Websocket client connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warning("Dropping slow websocket client")
					h.drop(c)
				}
			}
		case <-h.quit:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *hub) drop(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// publish hands the message to the hub. It returns once the hub has taken
// it or the hub has stopped.
func (h *hub) publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

func (h *hub) stop() {
	h.quitOnce.Do(func() { close(h.quit) })
}

type websocketHandler struct {
	hub *hub
}

func (wsh websocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Error upgrading websocket: %s", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBacklog)}

	select {
	case wsh.hub.register <- c:
	case <-wsh.hub.quit:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()

	select {
	case wsh.hub.unregister <- c:
	case <-wsh.hub.quit:
	}
}

// readPump only exists to process control frames and notice the client
// going away.
func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(wsMaxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("Websocket closed: %s", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Errorf("Websocket write error: %s", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

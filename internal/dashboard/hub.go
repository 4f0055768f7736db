// Package dashboard fans out engine WsMessages to connected websocket
// clients, mirroring the publish/subscribe hub pattern used for live
// order-flow dashboards elsewhere in this stack.
package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"btcdigital/internal/engine"
	"btcdigital/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireMessage is the JSON envelope every WsMessage marshals to; Type lets
// the frontend dispatch without reflection.
type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func encode(msg engine.WsMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Type: wsType(msg), Data: data})
}

func wsType(msg engine.WsMessage) string {
	switch msg.(type) {
	case engine.WsBtcPrice:
		return "btc_price"
	case engine.WsMarketState:
		return "market_state"
	case engine.WsModelUpdate:
		return "model_update"
	case engine.WsNewTrade:
		return "new_trade"
	case engine.WsTradeExited:
		return "trade_exited"
	case engine.WsTradeSettled:
		return "trade_settled"
	case engine.WsMetricsUpdate:
		return "metrics_update"
	case engine.WsEngineState:
		return "engine_state"
	default:
		return "unknown"
	}
}

// Hub registers/unregisters clients and fans out every message arriving
// on input to all of them. Only Run's goroutine ever touches clients, so
// no lock is needed around the map.
type Hub struct {
	input      <-chan engine.WsMessage
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
}

func NewHub(input <-chan engine.WsMessage) *Hub {
	return &Hub{
		input:      input,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			logger.Info("WS", "client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				logger.Info("WS", "client disconnected")
			}

		case msg, ok := <-h.input:
			if !ok {
				return
			}
			encoded, err := encode(msg)
			if err != nil {
				logger.Warn("WS", "encode failed: "+err.Error())
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- encoded:
				default:
					// slow client: drop this message rather than block the hub
				}
			}
		}
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWs upgrades an HTTP request to a websocket and registers the
// resulting client with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WS", err.Error())
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

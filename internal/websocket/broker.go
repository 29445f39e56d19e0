// Package websocket broadcasts match events and depth snapshots to
// subscribed clients, one topic per asset pair.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxMessageSize      = 64 * 1024
	defaultSendBuf      = 256
	defaultPublishBuf   = 4096
	maxConsecutiveDrops = 50
)

// TradeMsg is the payload for a settled fill.
type TradeMsg struct {
	Pair    string           `json:"pair"`
	Price   model.Uint64Flex `json:"price"`
	Amount  model.Uint64Flex `json:"amount"`
	BuySide bool             `json:"buySubmitted"`
	Ts      int64            `json:"ts"`
	Seq     uint64           `json:"seq,omitempty"`
}

// CancelMsg is the payload for an order leaving the matcher.
type CancelMsg struct {
	Pair   string `json:"pair"`
	Order  string `json:"order"`
	System bool   `json:"system"`
	Ts     int64  `json:"ts"`
	Seq    uint64 `json:"seq,omitempty"`
}

// DepthMsg carries an aggregated book snapshot.
type DepthMsg struct {
	Pair  string            `json:"pair"`
	Depth model.MarketDepth `json:"depth"`
	Seq   uint64            `json:"seq,omitempty"`
}

type publishMsg struct {
	topic string
	data  []byte
}

type subscription struct {
	client *Client
	topic  string
}

// Hub manages clients, subscriptions and publishes.
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan publishMsg

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	sendBuf      int
	publishDrops uint64

	log zerolog.Logger
}

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscribed map[string]struct{}

	// consecutive sends dropped; the hub evicts the client past the limit
	drops int
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan publishMsg, defaultPublishBuf),
		clients:     make(map[*Client]struct{}),
		topics:      make(map[string]map[*Client]struct{}),
		sendBuf:     defaultSendBuf,
		log:         log.With().Str("component", "ws").Logger(),
	}
}

// Run is the hub event loop; call as go hub.Run(ctx).
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}

		case c := <-h.unregister:
			h.drop(c)

		case s := <-h.subscribe:
			if _, ok := h.clients[s.client]; !ok {
				continue
			}
			if h.topics[s.topic] == nil {
				h.topics[s.topic] = make(map[*Client]struct{})
			}
			h.topics[s.topic][s.client] = struct{}{}
			s.client.subscribed[s.topic] = struct{}{}

		case s := <-h.unsubscribe:
			if subs := h.topics[s.topic]; subs != nil {
				delete(subs, s.client)
				if len(subs) == 0 {
					delete(h.topics, s.topic)
				}
			}
			delete(s.client.subscribed, s.topic)

		case p := <-h.publish:
			for c := range h.topics[p.topic] {
				select {
				case c.send <- p.data:
					c.drops = 0
				default:
					atomic.AddUint64(&h.publishDrops, 1)
					c.drops++
					if c.drops > maxConsecutiveDrops {
						h.log.Warn().Int("drops", c.drops).Msg("evicting slow client")
						h.drop(c)
					}
				}
			}

		case <-ctx.Done():
			h.log.Info().Msg("hub shutting down")
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for t := range c.subscribed {
		if subs := h.topics[t]; subs != nil {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, t)
			}
		}
	}
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers a client. Initial pairs can be
// passed via ?pairs=a/b,c/d.
func ServeWS(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		subscribed: make(map[string]struct{}),
	}

	if s := r.URL.Query().Get("pairs"); s != "" {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				client.subscribed[p] = struct{}{}
			}
		}
	}

	h.register <- client
	for p := range client.subscribed {
		h.subscribe <- subscription{client: client, topic: p}
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		var cmd struct {
			Type string `json:"type"` // "subscribe" | "unsubscribe"
			Pair string `json:"pair"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.log.Debug().Err(err).Msg("invalid client message")
			continue
		}

		switch cmd.Type {
		case "subscribe":
			if cmd.Pair != "" {
				c.hub.subscribe <- subscription{client: c, topic: cmd.Pair}
			}
		case "unsubscribe":
			if cmd.Pair != "" {
				c.hub.unsubscribe <- subscription{client: c, topic: cmd.Pair}
			}
		}
	}
}

// writePump serializes all writes to the connection, batching queued
// messages into one frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				_ = w.Close()
				return
			}
			n := len(c.send)
			for i := 0; i < n; i++ {
				if msg := <-c.send; msg != nil {
					_, _ = w.Write([]byte("\n"))
					_, _ = w.Write(msg)
				}
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PublishTrade fans a fill out to the pair's subscribers. Non-blocking: a
// full publish buffer drops the message and counts it.
func (h *Hub) PublishTrade(t TradeMsg) {
	t.Seq = nextSeq(t.Pair)
	h.publishJSON(t.Pair, "trade", t)
}

// PublishCancel fans a cancellation out to the pair's subscribers.
func (h *Hub) PublishCancel(c CancelMsg) {
	c.Seq = nextSeq(c.Pair)
	h.publishJSON(c.Pair, "cancel", c)
}

// PublishDepth fans a depth snapshot out to the pair's subscribers.
func (h *Hub) PublishDepth(d DepthMsg) {
	d.Seq = nextSeq(d.Pair)
	h.publishJSON(d.Pair, "depth", d)
}

func (h *Hub) publishJSON(topic, kind string, payload any) {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{kind, payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", kind).Msg("marshal payload")
		return
	}
	select {
	case h.publish <- publishMsg{topic: topic, data: b}:
	default:
		atomic.AddUint64(&h.publishDrops, 1)
		h.log.Warn().Str("type", kind).Msg("publish buffer full, dropping")
	}
}

// Stats returns the client count and cumulative publish drops.
func (h *Hub) Stats() (clients int, drops uint64) {
	return len(h.clients), atomic.LoadUint64(&h.publishDrops)
}

// Package network serves the simulation to websocket observers and REST
// clients. Player commands reach the engine through its entry points only.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/factorysim/internal/engine"
	"github.com/MRamiBalles/factorysim/internal/events"
	"github.com/MRamiBalles/factorysim/internal/platform/logger"
)

// Message types pushed to clients.
const (
	MessageEvent    = "event"
	MessageSnapshot = "snapshot"
	MessageAck      = "ack"
)

// Message is the envelope of everything the server sends.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Observer receives connection and message counts. metrics.Collector
// implements it.
type Observer interface {
	WSConnection(delta int)
	WSMessage(incoming bool)
}

type nopObserver struct{}

func (nopObserver) WSConnection(int) {}
func (nopObserver) WSMessage(bool)   {}

// HubConfig tunes the hub.
type HubConfig struct {
	SendBuffer       int
	ActionsPerSecond float64
	ActionBurst      int
	MaxClients       int
	SnapshotInterval time.Duration
	EventPoll        time.Duration
}

func (c HubConfig) withDefaults() HubConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.ActionsPerSecond <= 0 {
		c.ActionsPerSecond = 20
	}
	if c.ActionBurst <= 0 {
		c.ActionBurst = 40
	}
	if c.MaxClients <= 0 {
		c.MaxClients = 200
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = time.Second
	}
	if c.EventPoll <= 0 {
		c.EventPoll = 200 * time.Millisecond
	}
	return c
}

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	engine   *engine.Engine
	commands *Commands
	cfg      HubConfig
	observer Observer
	logger   *logger.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]bool
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns
	mu         sync.Mutex
}

// NewHub initializes a new WebSocket Hub. obs may be nil.
func NewHub(eng *engine.Engine, cfg HubConfig, obs Observer, log *logger.Logger) *Hub {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Hub{
		engine:     eng,
		commands:   NewCommands(eng),
		cfg:        cfg.withDefaults(),
		observer:   obs,
		logger:     log,
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser dashboards are served from other origins
			},
		},
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.observer.WSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.observer.WSMessage(false)
				default:
					h.logger.Warn("WebSocket client too slow, dropping it")
					h.drop(client)
				}
			}
			h.mu.Unlock()
		case dm := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[dm.client]; ok {
				select {
				case dm.client.send <- dm.payload:
					h.observer.WSMessage(false)
				default:
					h.drop(dm.client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes a client. h.mu must be held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.observer.WSConnection(-1)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s message for WebSocket broadcast: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// BroadcastEvent sends a journal event to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	h.publish(Message{Type: MessageEvent, Data: event})
}

// BroadcastSnapshot sends the whole game state to all connected clients.
func (h *Hub) BroadcastSnapshot() {
	h.publish(Message{Type: MessageSnapshot, Data: h.engine.Snapshot()})
}

// reply queues msg for one client only.
func (h *Hub) reply(c *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s reply: %v", msg.Type, err)
		return
	}
	select {
	case h.direct <- directMessage{client: c, payload: payload}:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine polling the journal and pushing new
// events to the Hub, so the hub never runs inside an engine tick.
func (h *Hub) StartEventPoller(ctx context.Context) {
	go func() {
		pollInterval := time.NewTicker(h.cfg.EventPoll)
		defer pollInterval.Stop()

		eventLog := h.engine.GetEventLog()
		lastSeq := eventLog.LastSeq()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				for _, event := range eventLog.Since(lastSeq) {
					h.BroadcastEvent(event)
					lastSeq = event.Seq
				}
			}
		}
	}()
}

// StartSnapshotBroadcaster pushes periodic state snapshots.
func (h *Hub) StartSnapshotBroadcaster(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.ClientCount() > 0 {
					h.BroadcastSnapshot()
				}
			}
		}
	}()
}

// ServeWs upgrades the request and starts the client pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.cfg.MaxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := NewClient(h, conn, rate.NewLimiter(rate.Limit(h.cfg.ActionsPerSecond), h.cfg.ActionBurst))
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/silostrike/backend/internal/game"
	log "github.com/sirupsen/logrus"
)

var errHubStopped = errors.New("websocket hub stopped")

// Engine is the part of the turn engine a socket needs.
type Engine interface {
	State(ctx context.Context, matchID string, viewerID int64) (*game.StateView, error)
	Heartbeat(ctx context.Context, matchID string, playerID int64) error
}

// Options configures a hub.
type Options struct {
	// PingPeriod is how often the server pings each socket. Every pong counts
	// as a presence heartbeat. Zero uses the default.
	PingPeriod time.Duration
	// AllowedOrigins restricts browser upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// Hub maintains the set of active clients. A player holds at most one
// connection; a newer one replaces the older.
type Hub struct {
	clients    map[int64]*Client            // playerID -> Client
	rooms      map[string]map[int64]*Client // matchID -> playerID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	engine     Engine
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

// NewHub creates a new Hub. Call Run before serving connections.
func NewHub(engine Engine, opts Options) *Hub {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	return &Hub{
		clients:    make(map[int64]*Client),
		rooms:      make(map[string]map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		engine:     engine,
		pingPeriod: opts.PingPeriod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser origins on the allow list.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set[origin] {
			return true
		}
		log.WithField("origin", origin).Warn("websocket origin rejected")
		return false
	}
}

// Run processes registrations until ctx is cancelled, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.rooms = make(map[string]map[int64]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.clients[c.playerID]; exists {
		log.WithField("player_id", c.playerID).Info("player reconnecting, replacing old connection")
		h.detach(old)
		close(old.send)
	}

	h.clients[c.playerID] = c
	if c.matchID != "" {
		if _, exists := h.rooms[c.matchID]; !exists {
			h.rooms[c.matchID] = make(map[int64]*Client)
		}
		h.rooms[c.matchID][c.playerID] = c
	}
	log.WithFields(log.Fields{"player_id": c.playerID, "match_id": c.matchID}).Debug("client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A replaced client was already detached and closed.
	if current, exists := h.clients[c.playerID]; !exists || current != c {
		return
	}
	h.detach(c)
	close(c.send)
	log.WithFields(log.Fields{"player_id": c.playerID, "match_id": c.matchID}).Debug("client disconnected")
}

// detach must be called with mu held.
func (h *Hub) detach(c *Client) {
	delete(h.clients, c.playerID)
	if room, exists := h.rooms[c.matchID]; exists {
		delete(room, c.playerID)
		if len(room) == 0 {
			delete(h.rooms, c.matchID)
		}
	}
}

// Serve upgrades the request and attaches the player. matchID may be empty for
// a lobby connection that only waits to be matched.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, playerID int64, matchID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:      h,
		conn:     conn,
		playerID: playerID,
		matchID:  matchID,
		send:     make(chan []byte, 256),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// BroadcastToMatch sends a message to every client in a match room.
func (h *Hub) BroadcastToMatch(matchID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).Error("failed to marshal message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[matchID] {
		select {
		case c.send <- data:
		default:
			log.WithFields(log.Fields{"player_id": c.playerID, "match_id": matchID}).Warn("client send buffer full, dropping message")
		}
	}
}

// SendToPlayer sends a message to a player's connection if there is one.
func (h *Hub) SendToPlayer(playerID int64, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).Error("failed to marshal message")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, exists := h.clients[playerID]
	if !exists {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.WithField("player_id", playerID).Warn("client send buffer full, dropping message")
		return false
	}
}

// HandleEvent routes a published event. Matched and game over events go to the
// players wherever they are connected; the rest go to the match room.
func (h *Hub) HandleEvent(ev game.Event) {
	switch ev.Type {
	case game.EventMatched, game.EventGameOver:
		for _, id := range ev.Players {
			h.SendToPlayer(id, ev)
		}
	default:
		h.BroadcastToMatch(ev.MatchID, ev)
	}
}

// Stats reports connected clients and open rooms.
func (h *Hub) Stats() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}

// Connected reports whether the player has a live connection.
func (h *Hub) Connected(playerID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

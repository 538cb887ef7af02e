package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	maxMessage = 4096

	defaultPingPeriod = 30 * time.Second
)

// PingPeriodFor returns a ping interval that lands several pongs inside the
// presence grace period, so a connected socket never goes stale.
func PingPeriodFor(grace time.Duration) time.Duration {
	period := grace / 3
	if period <= 0 || period >= pongWait {
		return defaultPingPeriod
	}
	if period < time.Second {
		return time.Second
	}
	return period
}

// Client is one websocket connection of a player.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	playerID int64
	matchID  string
	send     chan []byte
}

// WSMessage is an inbound client message.
type WSMessage struct {
	Type string `json:"type"`
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithError(err).WithField("player_id", c.playerID).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages. Pongs and heartbeat messages both count as
// presence for the match.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.heartbeat()
		return nil
	})
	c.heartbeat()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("player_id", c.playerID).Debug("websocket closed unexpectedly")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "heartbeat":
		c.heartbeat()
		c.reply(map[string]interface{}{"type": "heartbeat_ack", "at": time.Now().UTC()})

	case "get_state":
		if c.matchID == "" {
			c.sendError("not attached to a match")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		view, err := c.hub.engine.State(ctx, c.matchID, c.playerID)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.reply(map[string]interface{}{"type": "game_state", "state": view})

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) heartbeat() {
	if c.matchID == "" || c.hub.engine == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.hub.engine.Heartbeat(ctx, c.matchID, c.playerID); err != nil {
		log.WithError(err).WithFields(log.Fields{"player_id": c.playerID, "match_id": c.matchID}).Debug("heartbeat rejected")
	}
}

// reply goes through the hub so a replaced connection is never written to.
func (c *Client) reply(message interface{}) {
	c.hub.mu.RLock()
	current := c.hub.clients[c.playerID] == c
	c.hub.mu.RUnlock()
	if current {
		c.hub.SendToPlayer(c.playerID, message)
	}
}

func (c *Client) sendError(message string) {
	c.reply(map[string]interface{}{"type": "error", "message": message})
}

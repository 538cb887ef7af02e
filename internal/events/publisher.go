// Package events fans match events out over Redis pub/sub so every server
// instance can push them to its own websocket clients.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/silostrike/backend/internal/game"
	log "github.com/sirupsen/logrus"
)

// Channel carries JSON encoded game.Event values.
const Channel = "match_events"

// Publisher implements game.Publisher on a Redis channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a publisher on the default channel.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, channel: Channel}
}

// Publish sends the event. Failures are logged; clients fall back to polling.
func (p *Publisher) Publish(ctx context.Context, event game.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("type", event.Type).Error("failed to encode event")
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"type":     event.Type,
			"match_id": event.MatchID,
		}).Warn("failed to publish event")
	}
}

// Subscribe delivers decoded events to handle until ctx is cancelled. Malformed
// payloads are skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, handle func(game.Event)) {
	pubsub := rdb.Subscribe(ctx, Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.WithField("channel", Channel).Info("event subscriber started")
	for {
		select {
		case <-ctx.Done():
			log.Info("event subscriber stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev game.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.WithError(err).Warn("invalid event payload")
				continue
			}
			handle(ev)
		}
	}
}

package game

import (
	"context"
	"time"
)

// Event types pushed to match rooms.
const (
	EventMatched      = "matched"
	EventPlayerReady  = "player_ready"
	EventTurnResolved = "turn_resolved"
	EventGameOver     = "game_over"
)

// Event is a state change notification. It never carries hidden moves;
// clients fetch the redacted state after receiving one.
type Event struct {
	Type     string    `json:"type"`
	MatchID  string    `json:"matchId"`
	PlayerID *int64    `json:"playerId,omitempty"`
	Players  []int64   `json:"players,omitempty"`
	Turn     int       `json:"turn,omitempty"`
	Status   string    `json:"status,omitempty"`
	WinnerID *int64    `json:"winnerId,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

type nopFeeTrigger struct{}

func (nopFeeTrigger) TriggerWithdrawal() {}

func int64Ptr(v int64) *int64 { return &v }

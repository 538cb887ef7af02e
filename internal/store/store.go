// Package store persists queue entries, matches, game states and fee withdrawals
// in PostgreSQL. Every state transition is a conditional statement or a row-locked
// transaction; nothing reads a row and writes it back unguarded.
package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const matchColumns = `id, player1_id, player2_id, wager_amount, status, winner_id, forfeit_reason,
	forfeited_by, created_at, started_at, ended_at`

const queueColumns = `player_id, wager_amount, joined_at`

var stateColumnNames = []string{
	"match_id", "current_turn", "phase", "p1_silos", "p2_silos",
	"p1_defenses", "p1_attacks", "p2_defenses", "p2_attacks",
	"p1_ready", "p2_ready", "turn_started_at", "turn_resolved_at",
	"winner_id", "created_at", "updated_at",
}

var stateColumns = stateCols("")

// stateCols lists the game_states columns, qualified with alias when given.
func stateCols(alias string) string {
	if alias == "" {
		return strings.Join(stateColumnNames, ", ")
	}
	cols := make([]string, len(stateColumnNames))
	for i, c := range stateColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

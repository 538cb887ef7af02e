package game

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

const testMatchID = "7d1f3c8e-3b0a-4f43-9e55-1f6f2f0e9a11"

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// decEq matches a decimal argument by value rather than representation.
func decEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func newTestMatch(wager string) *models.Match {
	started := fixedNow.Add(-5 * time.Minute)
	return &models.Match{
		ID:          testMatchID,
		Player1ID:   1,
		Player2ID:   2,
		WagerAmount: dec(wager),
		Status:      StatusActive,
		CreatedAt:   started,
		StartedAt:   &started,
	}
}

func newTestState() *models.GameState {
	return &models.GameState{
		MatchID:     testMatchID,
		CurrentTurn: 1,
		Phase:       PhasePlanning,
		P1Silos:     NewSilos(),
		P2Silos:     NewSilos(),
		CreatedAt:   fixedNow.Add(-5 * time.Minute),
		UpdatedAt:   fixedNow.Add(-5 * time.Minute),
	}
}

func newTestPlayer(id int64, balance string, rating int) *models.Player {
	return &models.Player{
		ID:      id,
		Balance: dec(balance),
		Rating:  rating,
	}
}

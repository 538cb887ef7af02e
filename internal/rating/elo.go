// Package rating implements the Elo rating update used after every decided match.
package rating

import "math"

const (
	// K is the Elo development coefficient.
	K = 16
	// Floor is the lowest rating a player can drop to.
	Floor = 100
	// Default is the rating a new player starts with.
	Default = 500
)

// Expected is the probability that a player rated self beats one rated opp.
func Expected(self, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-self)/400))
}

// Change returns the rating delta for self after a decided game against opp.
// Draws do not change ratings and have no entry point here.
func Change(self, opp int, won bool) int {
	actual := 0.0
	if won {
		actual = 1
	}
	return int(math.Round(K * (actual - Expected(self, opp))))
}

// Apply adds change to old and clamps the result at Floor.
func Apply(old, change int) int {
	if r := old + change; r > Floor {
		return r
	}
	return Floor
}

// Outcome holds the deltas for both sides of a decided match.
type Outcome struct {
	WinnerDelta int
	LoserDelta  int
}

// Decide computes both deltas from the pre-match ratings.
func Decide(winnerRating, loserRating int) Outcome {
	return Outcome{
		WinnerDelta: Change(winnerRating, loserRating, true),
		LoserDelta:  Change(loserRating, winnerRating, false),
	}
}

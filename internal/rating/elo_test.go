package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChange_EqualRatings(t *testing.T) {
	assert.Equal(t, 8, Change(500, 500, true))
	assert.Equal(t, -8, Change(500, 500, false))
}

func TestChange_Underdog(t *testing.T) {
	// Beating a much stronger opponent is worth nearly the full K.
	assert.Equal(t, 15, Change(500, 900, true))
	assert.Equal(t, -1, Change(500, 900, false))
	// The favourite gains little.
	assert.Equal(t, 1, Change(900, 500, true))
	assert.Equal(t, -15, Change(900, 500, false))
}

func TestChange_Bounded(t *testing.T) {
	for _, self := range []int{100, 500, 1200, 2400} {
		for _, opp := range []int{100, 500, 1200, 2400} {
			win := Change(self, opp, true)
			loss := Change(self, opp, false)
			assert.GreaterOrEqual(t, win, 0)
			assert.LessOrEqual(t, win, K)
			assert.LessOrEqual(t, loss, 0)
			assert.GreaterOrEqual(t, loss, -K)
		}
	}
}

func TestApply_Floor(t *testing.T) {
	assert.Equal(t, 100, Apply(104, -20))
	assert.Equal(t, 100, Apply(100, -8))
	assert.Equal(t, 101, Apply(109, -8))
	assert.Equal(t, 508, Apply(500, 8))
}

func TestDecide(t *testing.T) {
	out := Decide(500, 500)

	assert.Equal(t, 8, out.WinnerDelta)
	assert.Equal(t, -8, out.LoserDelta)
}

func TestExpected_Symmetric(t *testing.T) {
	assert.InDelta(t, 1.0, Expected(600, 450)+Expected(450, 600), 1e-9)
	assert.InDelta(t, 0.5, Expected(500, 500), 1e-9)
}

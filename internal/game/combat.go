package game

import "fmt"

const (
	SiloCount    = 5
	SiloMaxHP    = 2
	DefenseSlots = 2
	AttackSlots  = 3
	// SilosToLose is the number of destroyed silos that ends the game for a side.
	SilosToLose = 3
)

// Outcome of a resolved turn.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomePlayer1Wins
	OutcomePlayer2Wins
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomePlayer1Wins:
		return "player1_wins"
	case OutcomePlayer2Wins:
		return "player2_wins"
	case OutcomeDraw:
		return "draw"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Terminal reports whether the game ends on this outcome.
func (o Outcome) Terminal() bool {
	return o != OutcomeContinue
}

// Moves is one player's blind submission for a turn.
type Moves struct {
	Defenses []int
	Attacks  []int
}

// Validate checks slot counts, index range and duplicates.
func (m Moves) Validate() error {
	if len(m.Defenses) != DefenseSlots {
		return fmt.Errorf("%w: expected %d defenses, got %d", ErrInvalidMoves, DefenseSlots, len(m.Defenses))
	}
	if len(m.Attacks) != AttackSlots {
		return fmt.Errorf("%w: expected %d attacks, got %d", ErrInvalidMoves, AttackSlots, len(m.Attacks))
	}
	if err := checkIndices("defense", m.Defenses); err != nil {
		return err
	}
	return checkIndices("attack", m.Attacks)
}

func checkIndices(kind string, idx []int) error {
	var seen [SiloCount]bool
	for _, i := range idx {
		if i < 0 || i >= SiloCount {
			return fmt.Errorf("%w: %s index %d out of range 0-%d", ErrInvalidMoves, kind, i, SiloCount-1)
		}
		if seen[i] {
			return fmt.Errorf("%w: duplicate %s index %d", ErrInvalidMoves, kind, i)
		}
		seen[i] = true
	}
	return nil
}

// Resolution is the result of applying both players' moves to the silos.
type Resolution struct {
	P1Silos     []int64
	P2Silos     []int64
	P1Destroyed int
	P2Destroyed int
	// P1Hits are the player 2 silos player 1 damaged this turn, and vice versa.
	P1Hits  []int
	P2Hits  []int
	Outcome Outcome
}

// NewSilos returns a full-health silo row.
func NewSilos() []int64 {
	s := make([]int64, SiloCount)
	for i := range s {
		s[i] = SiloMaxHP
	}
	return s
}

// ResolveTurn applies simultaneous moves. Inputs are not mutated.
func ResolveTurn(p1Silos, p2Silos []int64, p1, p2 Moves) Resolution {
	r := Resolution{
		P1Silos: append([]int64(nil), p1Silos...),
		P2Silos: append([]int64(nil), p2Silos...),
	}

	// Damage is computed against the pre-turn state for both sides.
	r.P1Hits = strike(r.P2Silos, p1.Attacks, p2.Defenses)
	r.P2Hits = strike(r.P1Silos, p2.Attacks, p1.Defenses)

	r.P1Destroyed = Destroyed(r.P1Silos)
	r.P2Destroyed = Destroyed(r.P2Silos)

	p1Lost := r.P1Destroyed >= SilosToLose
	p2Lost := r.P2Destroyed >= SilosToLose
	switch {
	case p1Lost && p2Lost:
		r.Outcome = OutcomeDraw
	case p2Lost:
		r.Outcome = OutcomePlayer1Wins
	case p1Lost:
		r.Outcome = OutcomePlayer2Wins
	default:
		r.Outcome = OutcomeContinue
	}
	return r
}

// strike applies attacks to target silos, skipping defended and destroyed ones.
func strike(target []int64, attacks, defenses []int) []int {
	defended := make(map[int]bool, len(defenses))
	for _, d := range defenses {
		defended[d] = true
	}

	var hits []int
	for _, a := range attacks {
		if a < 0 || a >= len(target) || defended[a] || target[a] <= 0 {
			continue
		}
		target[a]--
		hits = append(hits, a)
	}
	return hits
}

// Destroyed counts silos at zero HP.
func Destroyed(silos []int64) int {
	n := 0
	for _, hp := range silos {
		if hp <= 0 {
			n++
		}
	}
	return n
}

func toInts(a []int64) []int {
	out := make([]int, len(a))
	for i, v := range a {
		out[i] = int(v)
	}
	return out
}

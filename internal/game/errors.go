package game

import "errors"

// Validation errors reject the request without mutating state.
var (
	ErrInvalidMoves    = errors.New("invalid moves")
	ErrInvalidWager    = errors.New("invalid wager amount")
	ErrSelfTarget      = errors.New("cannot target yourself")
	ErrTargetNotQueued = errors.New("target player is not queued")
	ErrInvalidWinner   = errors.New("winner is not a participant")
	ErrMatchNotFound   = errors.New("match not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNotParticipant  = errors.New("player is not in this match")
)

// Conflicts with current state.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyQueued       = errors.New("player already queued")
	ErrAlreadySubmitted    = errors.New("moves already submitted for this turn")
	ErrMatchNotActive      = errors.New("match is not active")
	ErrOpponentConnected   = errors.New("opponent is still connected")
)

// IsValidation reports whether err should be surfaced as a bad request.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidMoves, ErrInvalidWager, ErrSelfTarget, ErrTargetNotQueued, ErrInvalidWinner,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

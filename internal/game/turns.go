package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/silostrike/backend/internal/models"
)

// Turn statuses returned to the submitting player.
const (
	TurnStatusWaiting  = "waiting"
	TurnStatusResolved = "resolved"
)

const maxSubmitAttempts = 3

// Settlement finalizes matches. Implemented by Settler.
type Settlement interface {
	Settle(ctx context.Context, req SettleRequest) (*SettleResult, error)
}

// SubmitTurnRequest is one player's blind submission.
type SubmitTurnRequest struct {
	MatchID  string
	PlayerID int64
	Defenses []int
	Attacks  []int
}

// TurnResult is returned after a submission.
type TurnResult struct {
	Status       string `json:"status"`
	Turn         int    `json:"turn"`
	TurnResolved bool   `json:"turnResolved"`
	GameOver     bool   `json:"gameOver,omitempty"`
	WinnerID     *int64 `json:"winnerId,omitempty"`
}

// Resignation is reported once a match ended by forfeit.
type Resignation struct {
	PlayerID int64  `json:"playerId"`
	Reason   string `json:"reason"`
}

// StateView is the polling response for one viewer.
type StateView struct {
	GameState   *models.GameState `json:"gameState"`
	Match       *models.Match     `json:"match"`
	Resignation *Resignation      `json:"resignation,omitempty"`
}

// TurnEngine accepts submissions and resolves turns exactly once.
type TurnEngine struct {
	matches    MatchStore
	settlement Settlement
	presence   Presence
	publisher  Publisher
	now        func() time.Time
}

// NewTurnEngine creates a turn engine. presence and publisher may be nil.
func NewTurnEngine(matches MatchStore, settlement Settlement, presence Presence, publisher Publisher) *TurnEngine {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TurnEngine{
		matches:    matches,
		settlement: settlement,
		presence:   presence,
		publisher:  publisher,
		now:        time.Now,
	}
}

// SubmitTurn records the player's moves and resolves the turn if both players are ready.
func (e *TurnEngine) SubmitTurn(ctx context.Context, req SubmitTurnRequest) (*TurnResult, error) {
	moves := Moves{Defenses: req.Defenses, Attacks: req.Attacks}
	if err := moves.Validate(); err != nil {
		return nil, err
	}

	match, err := e.matches.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	slot := match.Slot(req.PlayerID)
	if slot == 0 {
		return nil, ErrNotParticipant
	}
	if match.Status != StatusActive {
		return nil, ErrMatchNotActive
	}

	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		gs, err := e.matches.GetGameState(ctx, req.MatchID)
		if err != nil {
			return nil, err
		}
		if gs.Phase != PhasePlanning {
			return nil, ErrMatchNotActive
		}
		if gs.Ready(slot) {
			if gs.ReadyCount() == 2 {
				// An earlier resolution never committed.
				return e.resolve(ctx, match, gs)
			}
			return nil, ErrAlreadySubmitted
		}

		updated, err := e.matches.SubmitMoves(ctx, req.MatchID, gs.CurrentTurn, slot, moves, e.now())
		if err != nil {
			return nil, fmt.Errorf("failed to submit moves: %w", err)
		}
		if updated == nil {
			// Turn advanced or phase changed between read and write.
			continue
		}

		e.touch(ctx, req.MatchID, req.PlayerID)
		e.publisher.Publish(ctx, Event{
			Type:     EventPlayerReady,
			MatchID:  req.MatchID,
			PlayerID: int64Ptr(req.PlayerID),
			Turn:     updated.CurrentTurn,
			At:       e.now(),
		})

		if updated.ReadyCount() < 2 {
			return &TurnResult{Status: TurnStatusWaiting, Turn: updated.CurrentTurn}, nil
		}
		return e.resolve(ctx, match, updated)
	}

	return nil, fmt.Errorf("%w: turn changed while submitting", ErrAlreadySubmitted)
}

func (e *TurnEngine) resolve(ctx context.Context, match *models.Match, gs *models.GameState) (*TurnResult, error) {
	return resolveTurn(ctx, e.matches, e.settlement, e.publisher, match, gs, e.now())
}

// resolveTurn computes the turn from the stored moves and commits it with a CAS.
// Concurrent callers compute the same result; only one commit lands.
func resolveTurn(ctx context.Context, matches MatchStore, settlement Settlement, publisher Publisher, match *models.Match, gs *models.GameState, now time.Time) (*TurnResult, error) {
	turn := gs.CurrentTurn
	res := ResolveTurn(gs.P1Silos, gs.P2Silos,
		Moves{Defenses: toInts(gs.P1Defenses), Attacks: toInts(gs.P1Attacks)},
		Moves{Defenses: toInts(gs.P2Defenses), Attacks: toInts(gs.P2Attacks)},
	)
	winnerID := winnerFor(match, res.Outcome)

	won, err := matches.CommitResolution(ctx, match.ID, turn, res, winnerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to commit resolution: %w", err)
	}
	if !won {
		fresh, err := matches.GetGameState(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		return resultFromState(fresh, turn), nil
	}

	fields := log.Fields{
		"match_id":     match.ID,
		"turn":         turn,
		"outcome":      res.Outcome.String(),
		"p1_destroyed": res.P1Destroyed,
		"p2_destroyed": res.P2Destroyed,
	}
	log.WithFields(fields).Info("turn resolved")

	publisher.Publish(ctx, Event{
		Type:    EventTurnResolved,
		MatchID: match.ID,
		Turn:    turn,
		At:      now,
	})

	if !res.Outcome.Terminal() {
		return &TurnResult{Status: TurnStatusResolved, Turn: turn, TurnResolved: true}, nil
	}

	if _, err := settlement.Settle(ctx, SettleRequest{
		MatchID:     match.ID,
		WinnerID:    winnerID,
		Status:      StatusCompleted,
		ExpectPhase: PhaseGameOver,
	}); err != nil {
		// The game_over state is committed; the reconcile sweep settles it later.
		log.WithError(err).WithFields(fields).Error("settlement after resolution failed")
	}

	return &TurnResult{
		Status:       TurnStatusResolved,
		Turn:         turn,
		TurnResolved: true,
		GameOver:     true,
		WinnerID:     winnerID,
	}, nil
}

func resultFromState(gs *models.GameState, turn int) *TurnResult {
	if gs.Phase == PhaseGameOver {
		return &TurnResult{
			Status:       TurnStatusResolved,
			Turn:         turn,
			TurnResolved: true,
			GameOver:     true,
			WinnerID:     gs.WinnerID,
		}
	}
	return &TurnResult{Status: TurnStatusResolved, Turn: turn, TurnResolved: gs.CurrentTurn > turn}
}

func winnerFor(m *models.Match, o Outcome) *int64 {
	switch o {
	case OutcomePlayer1Wins:
		return int64Ptr(m.Player1ID)
	case OutcomePlayer2Wins:
		return int64Ptr(m.Player2ID)
	}
	return nil
}

// State returns the match and game state as seen by viewerID. Moves the opponent
// submitted for the unresolved turn are hidden.
func (e *TurnEngine) State(ctx context.Context, matchID string, viewerID int64) (*StateView, error) {
	match, err := e.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	gs, err := e.matches.GetGameState(ctx, matchID)
	if err != nil {
		return nil, err
	}

	viewerSlot := match.Slot(viewerID)
	if viewerSlot != 0 && match.Status == StatusActive {
		e.touch(ctx, matchID, viewerID)
	}

	view := &StateView{
		GameState: redact(gs, viewerSlot),
		Match:     match,
	}
	if match.Status == StatusForfeit && match.ForfeitedBy != nil {
		reason := ""
		if match.ForfeitReason != nil {
			reason = *match.ForfeitReason
		}
		view.Resignation = &Resignation{PlayerID: *match.ForfeitedBy, Reason: reason}
	}
	return view, nil
}

// Heartbeat records liveness for a participant of an active match.
func (e *TurnEngine) Heartbeat(ctx context.Context, matchID string, playerID int64) error {
	match, err := e.matches.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Slot(playerID) == 0 {
		return ErrNotParticipant
	}
	if match.Status != StatusActive {
		return ErrMatchNotActive
	}
	if e.presence == nil {
		return nil
	}
	return e.presence.Touch(ctx, matchID, playerID)
}

func (e *TurnEngine) touch(ctx context.Context, matchID string, playerID int64) {
	if e.presence == nil {
		return
	}
	if err := e.presence.Touch(ctx, matchID, playerID); err != nil {
		log.WithError(err).WithFields(log.Fields{"match_id": matchID, "player_id": playerID}).Warn("presence touch failed")
	}
}

// redact hides the moves of a slot that is ready in an unresolved turn unless the
// viewer owns that slot.
func redact(gs *models.GameState, viewerSlot int) *models.GameState {
	out := *gs
	if gs.Phase != PhasePlanning {
		return &out
	}
	if gs.P1Ready && viewerSlot != 1 {
		out.P1Defenses, out.P1Attacks = nil, nil
	}
	if gs.P2Ready && viewerSlot != 2 {
		out.P2Defenses, out.P2Attacks = nil, nil
	}
	return &out
}

// errIsNotFound reports errors that mean the match row is gone.
func errIsNotFound(err error) bool {
	return errors.Is(err, ErrMatchNotFound)
}

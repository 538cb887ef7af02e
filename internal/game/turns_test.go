package game

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*TurnEngine, *MockMatchStore, *MockSettlement, *MockPresence, *MockPublisher) {
	matches := new(MockMatchStore)
	settlement := new(MockSettlement)
	presence := new(MockPresence)
	pub := new(MockPublisher)

	e := NewTurnEngine(matches, settlement, presence, pub)
	e.now = fixedClock
	return e, matches, settlement, presence, pub
}

func eventOfType(typ string) interface{} {
	return mock.MatchedBy(func(e Event) bool { return e.Type == typ })
}

func TestSubmitTurn_InvalidMoves(t *testing.T) {
	e, matches, _, _, _ := newTestEngine()

	cases := []SubmitTurnRequest{
		{MatchID: testMatchID, PlayerID: 1, Defenses: []int{0}, Attacks: []int{1, 2, 3}},
		{MatchID: testMatchID, PlayerID: 1, Defenses: []int{0, 1}, Attacks: []int{1, 2, 5}},
		{MatchID: testMatchID, PlayerID: 1, Defenses: []int{0, 0}, Attacks: []int{1, 2, 3}},
	}
	for _, req := range cases {
		_, err := e.SubmitTurn(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidMoves)
	}
	matches.AssertNotCalled(t, "GetMatch", mock.Anything, mock.Anything)
}

func TestSubmitTurn_NotParticipant(t *testing.T) {
	e, matches, _, _, _ := newTestEngine()
	ctx := context.Background()

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)

	_, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 7, Defenses: []int{0, 1}, Attacks: []int{2, 3, 4},
	})

	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSubmitTurn_FirstPlayerWaits(t *testing.T) {
	e, matches, _, presence, pub := newTestEngine()
	ctx := context.Background()

	moves := Moves{Defenses: []int{0, 1}, Attacks: []int{2, 3, 4}}
	updated := newTestState()
	updated.P1Ready = true
	updated.P1Defenses = pq.Int64Array{0, 1}
	updated.P1Attacks = pq.Int64Array{2, 3, 4}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(newTestState(), nil)
	matches.On("SubmitMoves", ctx, testMatchID, 1, 1, moves, fixedNow).Return(updated, nil)
	presence.On("Touch", ctx, testMatchID, int64(1)).Return(nil)
	pub.On("Publish", ctx, eventOfType(EventPlayerReady)).Return()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 1, Defenses: moves.Defenses, Attacks: moves.Attacks,
	})

	require.NoError(t, err)
	assert.Equal(t, TurnStatusWaiting, res.Status)
	assert.False(t, res.TurnResolved)
	matches.AssertNotCalled(t, "CommitResolution", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitTurn_AlreadySubmitted(t *testing.T) {
	e, matches, _, _, _ := newTestEngine()
	ctx := context.Background()

	gs := newTestState()
	gs.P2Ready = true
	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(gs, nil)

	_, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 2, Defenses: []int{0, 1}, Attacks: []int{2, 3, 4},
	})

	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	matches.AssertNotCalled(t, "SubmitMoves", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitTurn_MatchNotActive(t *testing.T) {
	e, matches, _, _, _ := newTestEngine()
	ctx := context.Background()

	m := newTestMatch("0.1")
	m.Status = StatusCompleted
	matches.On("GetMatch", ctx, testMatchID).Return(m, nil)

	_, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 1, Defenses: []int{0, 1}, Attacks: []int{2, 3, 4},
	})

	assert.ErrorIs(t, err, ErrMatchNotActive)
}

func TestSubmitTurn_SecondPlayerResolves(t *testing.T) {
	e, matches, settlement, presence, pub := newTestEngine()
	ctx := context.Background()

	before := newTestState()
	before.P1Ready = true
	before.P1Defenses = pq.Int64Array{0, 1}
	before.P1Attacks = pq.Int64Array{0, 1, 2}

	both := *before
	both.P2Ready = true
	both.P2Defenses = pq.Int64Array{0, 1}
	both.P2Attacks = pq.Int64Array{2, 3, 4}

	p2Moves := Moves{Defenses: []int{0, 1}, Attacks: []int{2, 3, 4}}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(before, nil)
	matches.On("SubmitMoves", ctx, testMatchID, 1, 2, p2Moves, fixedNow).Return(&both, nil)
	matches.On("CommitResolution", ctx, testMatchID, 1, mock.MatchedBy(func(r Resolution) bool {
		// P1 attacked 0,1,2 against defenses 0,1: only silo 2 of P2 is hit.
		// P2 attacked 2,3,4 against defenses 0,1: silos 2,3,4 of P1 are hit.
		return r.Outcome == OutcomeContinue &&
			assert.ObjectsAreEqual([]int{2}, r.P1Hits) &&
			assert.ObjectsAreEqual([]int{2, 3, 4}, r.P2Hits) &&
			r.P1Silos[4] == 1 && r.P2Silos[2] == 1
	}), (*int64)(nil), fixedNow).Return(true, nil)
	presence.On("Touch", ctx, testMatchID, int64(2)).Return(nil)
	pub.On("Publish", ctx, eventOfType(EventPlayerReady)).Return()
	pub.On("Publish", ctx, eventOfType(EventTurnResolved)).Return().Once()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 2, Defenses: p2Moves.Defenses, Attacks: p2Moves.Attacks,
	})

	require.NoError(t, err)
	assert.Equal(t, TurnStatusResolved, res.Status)
	assert.True(t, res.TurnResolved)
	assert.False(t, res.GameOver)
	assert.Equal(t, 1, res.Turn)
	settlement.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	matches.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSubmitTurn_TerminalTurnSettles(t *testing.T) {
	e, matches, settlement, presence, pub := newTestEngine()
	ctx := context.Background()

	gs := newTestState()
	gs.P2Silos = pq.Int64Array{0, 0, 1, 2, 2}
	gs.P2Ready = true
	gs.P2Defenses = pq.Int64Array{3, 4}
	gs.P2Attacks = pq.Int64Array{0, 1, 2}

	both := *gs
	both.P1Ready = true
	both.P1Defenses = pq.Int64Array{0, 1}
	both.P1Attacks = pq.Int64Array{2, 3, 4}

	p1Moves := Moves{Defenses: []int{0, 1}, Attacks: []int{2, 3, 4}}
	winner := int64(1)

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(gs, nil)
	matches.On("SubmitMoves", ctx, testMatchID, 1, 1, p1Moves, fixedNow).Return(&both, nil)
	matches.On("CommitResolution", ctx, testMatchID, 1, mock.MatchedBy(func(r Resolution) bool {
		return r.Outcome == OutcomePlayer1Wins && r.P2Destroyed == 3
	}), &winner, fixedNow).Return(true, nil)
	presence.On("Touch", ctx, testMatchID, int64(1)).Return(nil)
	pub.On("Publish", ctx, mock.Anything).Return()
	settlement.On("Settle", ctx, SettleRequest{
		MatchID:     testMatchID,
		WinnerID:    &winner,
		Status:      StatusCompleted,
		ExpectPhase: PhaseGameOver,
	}).Return(&SettleResult{Status: SettleStatusSettled, MatchID: testMatchID, WinnerID: &winner}, nil).Once()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 1, Defenses: p1Moves.Defenses, Attacks: p1Moves.Attacks,
	})

	require.NoError(t, err)
	assert.True(t, res.GameOver)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, winner, *res.WinnerID)
	settlement.AssertExpectations(t)
}

func TestSubmitTurn_LosingCommitRaceReportsWinnerState(t *testing.T) {
	e, matches, settlement, presence, pub := newTestEngine()
	ctx := context.Background()

	gs := newTestState()
	gs.P1Ready = true
	gs.P1Defenses = pq.Int64Array{0, 1}
	gs.P1Attacks = pq.Int64Array{2, 3, 4}

	both := *gs
	both.P2Ready = true
	both.P2Defenses = pq.Int64Array{2, 3}
	both.P2Attacks = pq.Int64Array{0, 1, 4}

	advanced := newTestState()
	advanced.CurrentTurn = 2

	p2Moves := Moves{Defenses: []int{2, 3}, Attacks: []int{0, 1, 4}}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(gs, nil).Once()
	matches.On("SubmitMoves", ctx, testMatchID, 1, 2, p2Moves, fixedNow).Return(&both, nil)
	matches.On("CommitResolution", ctx, testMatchID, 1, mock.Anything, mock.Anything, fixedNow).Return(false, nil)
	matches.On("GetGameState", ctx, testMatchID).Return(advanced, nil).Once()
	presence.On("Touch", ctx, testMatchID, int64(2)).Return(nil)
	pub.On("Publish", ctx, eventOfType(EventPlayerReady)).Return()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 2, Defenses: p2Moves.Defenses, Attacks: p2Moves.Attacks,
	})

	require.NoError(t, err)
	assert.True(t, res.TurnResolved)
	assert.False(t, res.GameOver)
	pub.AssertNotCalled(t, "Publish", ctx, eventOfType(EventTurnResolved))
	settlement.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestSubmitTurn_RetriesWhenTurnAdvances(t *testing.T) {
	e, matches, _, presence, pub := newTestEngine()
	ctx := context.Background()

	turn1 := newTestState()
	turn2 := newTestState()
	turn2.CurrentTurn = 2
	updated := newTestState()
	updated.CurrentTurn = 2
	updated.P1Ready = true

	moves := Moves{Defenses: []int{0, 1}, Attacks: []int{2, 3, 4}}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(turn1, nil).Once()
	matches.On("SubmitMoves", ctx, testMatchID, 1, 1, moves, fixedNow).Return(nil, nil).Once()
	matches.On("GetGameState", ctx, testMatchID).Return(turn2, nil).Once()
	matches.On("SubmitMoves", ctx, testMatchID, 2, 1, moves, fixedNow).Return(updated, nil).Once()
	presence.On("Touch", ctx, testMatchID, int64(1)).Return(nil)
	pub.On("Publish", ctx, eventOfType(EventPlayerReady)).Return()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 1, Defenses: moves.Defenses, Attacks: moves.Attacks,
	})

	require.NoError(t, err)
	assert.Equal(t, TurnStatusWaiting, res.Status)
	assert.Equal(t, 2, res.Turn)
	matches.AssertExpectations(t)
}

func TestState_RedactsOpponentMoves(t *testing.T) {
	e, matches, _, presence, _ := newTestEngine()
	ctx := context.Background()

	gs := newTestState()
	gs.P1Ready = true
	gs.P1Defenses = pq.Int64Array{0, 1}
	gs.P1Attacks = pq.Int64Array{2, 3, 4}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(gs, nil)
	presence.On("Touch", ctx, testMatchID, mock.Anything).Return(nil)

	opp, err := e.State(ctx, testMatchID, 2)
	require.NoError(t, err)
	assert.True(t, opp.GameState.P1Ready)
	assert.Nil(t, opp.GameState.P1Defenses)
	assert.Nil(t, opp.GameState.P1Attacks)

	own, err := e.State(ctx, testMatchID, 1)
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{0, 1}, own.GameState.P1Defenses)

	// The stored state is untouched by redaction.
	assert.Equal(t, pq.Int64Array{2, 3, 4}, gs.P1Attacks)
}

func TestState_SpectatorDoesNotTouchPresence(t *testing.T) {
	e, matches, _, presence, _ := newTestEngine()
	ctx := context.Background()

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(newTestState(), nil)

	_, err := e.State(ctx, testMatchID, 99)

	require.NoError(t, err)
	presence.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
}

func TestState_ReportsResignation(t *testing.T) {
	e, matches, _, _, _ := newTestEngine()
	ctx := context.Background()

	m := newTestMatch("0.1")
	m.Status = StatusForfeit
	m.WinnerID = int64Ptr(1)
	m.ForfeitedBy = int64Ptr(2)
	reason := ReasonAbandoned
	m.ForfeitReason = &reason

	gs := newTestState()
	gs.Phase = PhaseGameOver
	gs.WinnerID = int64Ptr(1)

	matches.On("GetMatch", ctx, testMatchID).Return(m, nil)
	matches.On("GetGameState", ctx, testMatchID).Return(gs, nil)

	view, err := e.State(ctx, testMatchID, 1)

	require.NoError(t, err)
	require.NotNil(t, view.Resignation)
	assert.Equal(t, int64(2), view.Resignation.PlayerID)
	assert.Equal(t, ReasonAbandoned, view.Resignation.Reason)
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("participant", func(t *testing.T) {
		e, matches, _, presence, _ := newTestEngine()
		matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0"), nil)
		presence.On("Touch", ctx, testMatchID, int64(2)).Return(nil).Once()

		require.NoError(t, e.Heartbeat(ctx, testMatchID, 2))
		presence.AssertExpectations(t)
	})

	t.Run("outsider", func(t *testing.T) {
		e, matches, _, _, _ := newTestEngine()
		matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0"), nil)

		assert.ErrorIs(t, e.Heartbeat(ctx, testMatchID, 5), ErrNotParticipant)
	})

	t.Run("finished match", func(t *testing.T) {
		e, matches, _, _, _ := newTestEngine()
		m := newTestMatch("0")
		m.Status = StatusCompleted
		matches.On("GetMatch", ctx, testMatchID).Return(m, nil)

		assert.ErrorIs(t, e.Heartbeat(ctx, testMatchID, 1), ErrMatchNotActive)
	})
}

func TestSubmitTurn_FailedCommitIsRedriven(t *testing.T) {
	e, matches, settlement, presence, pub := newTestEngine()
	ctx := context.Background()

	before := newTestState()
	before.P1Ready = true
	before.P1Defenses = pq.Int64Array{0, 1}
	before.P1Attacks = pq.Int64Array{0, 1, 2}

	both := *before
	both.P2Ready = true
	both.P2Defenses = pq.Int64Array{0, 1}
	both.P2Attacks = pq.Int64Array{2, 3, 4}

	p2Moves := Moves{Defenses: []int{0, 1}, Attacks: []int{2, 3, 4}}

	matches.On("GetMatch", ctx, testMatchID).Return(newTestMatch("0.1"), nil)
	matches.On("GetGameState", ctx, testMatchID).Return(before, nil).Once()
	matches.On("SubmitMoves", ctx, testMatchID, 1, 2, p2Moves, fixedNow).Return(&both, nil).Once()
	matches.On("CommitResolution", ctx, testMatchID, 1, mock.Anything, (*int64)(nil), fixedNow).
		Return(false, errors.New("connection reset")).Once()
	presence.On("Touch", ctx, testMatchID, int64(2)).Return(nil)
	pub.On("Publish", ctx, eventOfType(EventPlayerReady)).Return()

	_, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 2, Defenses: p2Moves.Defenses, Attacks: p2Moves.Attacks,
	})
	require.Error(t, err)

	// Both slots are ready now; a resubmission by either player resolves the
	// stored moves instead of being rejected.
	matches.On("GetGameState", ctx, testMatchID).Return(&both, nil)
	matches.On("CommitResolution", ctx, testMatchID, 1, mock.MatchedBy(func(r Resolution) bool {
		return r.Outcome == OutcomeContinue && assert.ObjectsAreEqual([]int{2}, r.P1Hits)
	}), (*int64)(nil), fixedNow).Return(true, nil).Once()
	pub.On("Publish", ctx, eventOfType(EventTurnResolved)).Return().Once()

	res, err := e.SubmitTurn(ctx, SubmitTurnRequest{
		MatchID: testMatchID, PlayerID: 1, Defenses: []int{3, 4}, Attacks: []int{0, 1, 2},
	})

	require.NoError(t, err)
	assert.Equal(t, TurnStatusResolved, res.Status)
	assert.True(t, res.TurnResolved)
	matches.AssertNumberOfCalls(t, "SubmitMoves", 1)
	settlement.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Player represents a user in the system
type Player struct {
	ID            int64           `db:"id" json:"id"`
	DisplayName   string          `db:"display_name" json:"displayName"`
	WalletAddress *string         `db:"wallet_address" json:"walletAddress,omitempty"`
	IsGuest       bool            `db:"is_guest" json:"isGuest"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Rating        int             `db:"rating" json:"rating"`
	Wins          int             `db:"wins" json:"wins"`
	Losses        int             `db:"losses" json:"losses"`
	CurrentStreak int             `db:"current_streak" json:"currentStreak"`
	LongestStreak int             `db:"longest_streak" json:"longestStreak"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// QueueEntry is a player waiting for an opponent at a wager tier
type QueueEntry struct {
	PlayerID    int64           `db:"player_id" json:"playerId"`
	WagerAmount decimal.Decimal `db:"wager_amount" json:"wagerAmount"`
	JoinedAt    time.Time       `db:"joined_at" json:"joinedAt"`
}

// Match represents a game between two players
type Match struct {
	ID            string          `db:"id" json:"id"`
	Player1ID     int64           `db:"player1_id" json:"player1Id"`
	Player2ID     int64           `db:"player2_id" json:"player2Id"`
	WagerAmount   decimal.Decimal `db:"wager_amount" json:"wagerAmount"`
	Status        string          `db:"status" json:"status"`
	WinnerID      *int64          `db:"winner_id" json:"winnerId"`
	ForfeitReason *string         `db:"forfeit_reason" json:"forfeitReason,omitempty"`
	ForfeitedBy   *int64          `db:"forfeited_by" json:"forfeitedBy,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	StartedAt     *time.Time      `db:"started_at" json:"startedAt,omitempty"`
	EndedAt       *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
}

// Slot returns 1 or 2 for a participant and 0 for anyone else.
func (m *Match) Slot(playerID int64) int {
	switch playerID {
	case m.Player1ID:
		return 1
	case m.Player2ID:
		return 2
	}
	return 0
}

// Opponent returns the other participant's id.
func (m *Match) Opponent(playerID int64) int64 {
	if playerID == m.Player1ID {
		return m.Player2ID
	}
	return m.Player1ID
}

// IsWagered reports whether balances move when the match settles.
func (m *Match) IsWagered() bool {
	return m.WagerAmount.IsPositive()
}

// GameState is the per-match turn state
type GameState struct {
	MatchID        string        `db:"match_id" json:"matchId"`
	CurrentTurn    int           `db:"current_turn" json:"currentTurn"`
	Phase          string        `db:"phase" json:"phase"`
	P1Silos        pq.Int64Array `db:"p1_silos" json:"p1Silos"`
	P2Silos        pq.Int64Array `db:"p2_silos" json:"p2Silos"`
	P1Defenses     pq.Int64Array `db:"p1_defenses" json:"p1Defenses"`
	P1Attacks      pq.Int64Array `db:"p1_attacks" json:"p1Attacks"`
	P2Defenses     pq.Int64Array `db:"p2_defenses" json:"p2Defenses"`
	P2Attacks      pq.Int64Array `db:"p2_attacks" json:"p2Attacks"`
	P1Ready        bool          `db:"p1_ready" json:"p1Ready"`
	P2Ready        bool          `db:"p2_ready" json:"p2Ready"`
	TurnStartedAt  *time.Time    `db:"turn_started_at" json:"turnStartedAt,omitempty"`
	TurnResolvedAt *time.Time    `db:"turn_resolved_at" json:"turnResolvedAt,omitempty"`
	WinnerID       *int64        `db:"winner_id" json:"winnerId"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// Ready returns the ready flag for slot 1 or 2.
func (g *GameState) Ready(slot int) bool {
	if slot == 1 {
		return g.P1Ready
	}
	return g.P2Ready
}

// ReadyCount is 0, 1 or 2.
func (g *GameState) ReadyCount() int {
	n := 0
	if g.P1Ready {
		n++
	}
	if g.P2Ready {
		n++
	}
	return n
}

// LedgerEntry records a single balance movement
type LedgerEntry struct {
	ID           int64           `db:"id" json:"id"`
	PlayerID     int64           `db:"player_id" json:"playerId"`
	MatchID      *string         `db:"match_id" json:"matchId,omitempty"`
	EntryType    string          `db:"entry_type" json:"entryType"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// PlatformFees is the single fee accumulator row
type PlatformFees struct {
	Accrued   decimal.Decimal `db:"accrued" json:"accrued"`
	Lifetime  decimal.Decimal `db:"lifetime" json:"lifetime"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// FeeWithdrawal is a payout of accrued fees to the settlement address
type FeeWithdrawal struct {
	ID          string          `db:"id" json:"id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Destination string          `db:"destination" json:"destination"`
	Status      string          `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"lastError,omitempty"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// AdminAccount represents an operator allowed to use admin routes
type AdminAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"displayName"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// AdminAudit is one admin action
type AdminAudit struct {
	ID            int64           `db:"id" json:"id"`
	AdminUsername string          `db:"admin_username" json:"adminUsername"`
	IP            string          `db:"ip" json:"ip"`
	Route         string          `db:"route" json:"route"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	Success       bool            `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

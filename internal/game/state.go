package game

// Match statuses. Status only moves forward: waiting -> active -> completed|forfeit.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusForfeit   = "forfeit"
)

// Turn phases stored on the game state row. Resolution is the implicit step
// between both players becoming ready and the CAS that commits the result.
const (
	PhasePlanning = "planning"
	PhaseGameOver = "game_over"
)

// Reasons recorded on a match that did not end by normal resolution.
const (
	ReasonAbandoned  = "abandoned"
	ReasonDisconnect = "disconnect"
	ReasonResigned   = "resigned"
	ReasonAdmin      = "admin"
	ReasonExpired    = "expired"
)

// Ledger entry types.
const (
	EntryEscrow      = "ESCROW"
	EntryQueueRefund = "QUEUE_REFUND"
	EntryStaleRefund = "STALE_REFUND"
	EntryPayout      = "PAYOUT"
	EntryDrawRefund  = "DRAW_REFUND"
	EntryAdminCredit = "ADMIN_CREDIT"
)

// IsTerminal reports whether a match status can no longer change.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusForfeit
}

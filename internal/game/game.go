package game

import "time"

// Side is a participant color slot.
type Side int

const (
	SideNone  Side = 0
	SideWhite Side = 1
	SideBlack Side = 2
)

// Role is the participation kind of a ledger entry.
type Role int

const (
	RoleAnonymous Role = 0
	RolePlayer    Role = 1
	RoleVoter     Role = 2
)

type Status string

const (
	StatusAwait          Status = "await"
	StatusReady          Status = "ready"
	StatusContinue       Status = "continue"
	StatusCheckmate      Status = "checkmate"
	StatusStalemate      Status = "stalemate"
	StatusDraw           Status = "draw"
	StatusWhiteSurrender Status = "white_surrender"
	StatusBlackSurrender Status = "black_surrender"
)

// Terminal reports whether the status is absorbing: once reached, no
// further moves are accepted for the game.
func (s Status) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusWhiteSurrender, StatusBlackSurrender:
		return true
	}
	return false
}

// Playable reports whether moves may be applied in this status.
func (s Status) Playable() bool {
	return s == StatusReady || s == StatusContinue
}

// SurrenderFor returns the terminal status recorded when the given side
// abandons the game. The opponent wins.
func SurrenderFor(side Side) Status {
	if side == SideWhite {
		return StatusWhiteSurrender
	}
	return StatusBlackSurrender
}

// Record is the one mutable summary row per game.
type Record struct {
	ID            string
	BoardPosition string
	Status        Status
	CreatorUserID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JoinEntry is one append-only row of the join ledger. Entries are never
// mutated after append except to clear SessionRef when the connection
// that produced the entry goes away.
type JoinEntry struct {
	GameID     string
	UserID     string
	Side       Side
	Role       Role
	JoinID     string
	Sequence   int64
	SessionRef string // clientId of the live connection; "" once cleared
	CreatedAt  time.Time
}

// Active reports whether the entry still has a live connection attached.
func (e JoinEntry) Active() bool { return e.SessionRef != "" }

// PerkRecord is one immutable perk application row.
type PerkRecord struct {
	Type            string
	GameID          string
	OriginSessionID string
	Payload         map[string]string
	AppliedAt       time.Time
}

// Package store defines the storage collaborator contract for the two
// record kinds the session protocol persists: the mutable game record and
// the append-only join ledger (plus perk application rows and the user
// registry). The coordinator serializes all writes for one game through
// its per-game actor, so implementations only need per-call consistency.
package store

import (
	"context"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

type Store interface {
	GetGame(ctx context.Context, id string) (*game.Record, error)
	CreateGame(ctx context.Context, rec *game.Record) error
	UpdateGame(ctx context.Context, rec *game.Record) error

	// AppendJoin assigns the entry's Sequence (monotonic per game) and
	// CreatedAt before persisting it.
	AppendJoin(ctx context.Context, entry *game.JoinEntry) error
	// JoinsForGame returns the full ledger in ascending sequence order.
	JoinsForGame(ctx context.Context, gameID string) ([]game.JoinEntry, error)
	// ActivePlayerByUser returns the highest-sequence live player entry
	// for the user, or nil if the user holds none.
	ActivePlayerByUser(ctx context.Context, gameID, userID string) (*game.JoinEntry, error)
	// ActivePlayerBySide returns the highest-sequence live player entry
	// holding the side, or nil if the side is free.
	ActivePlayerBySide(ctx context.Context, gameID string, side game.Side) (*game.JoinEntry, error)
	// ClearJoinSessionRef detaches the connection from a ledger entry.
	// The entry itself is never deleted.
	ClearJoinSessionRef(ctx context.Context, joinID string) error

	AppendPerk(ctx context.Context, rec *game.PerkRecord) error
	PerksForGame(ctx context.Context, gameID string) ([]game.PerkRecord, error)

	CreateUser(ctx context.Context, id, name string) error
	UserExists(ctx context.Context, id string) (bool, error)
}

package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
	"github.com/DoyleJ11/chess-session-backend/internal/rules"
)

// doJoin appends a ledger entry for the caller. The seat checks re-read
// the latest ledger state here, on the actor goroutine, immediately
// before the append: two racing joins for one side resolve in arrival
// order with the loser rejected.
func (a *gameActor) doJoin(ctx context.Context, req protocol.Request) protocol.Response {
	rec, err := a.c.store.GetGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}

	if req.Role == game.RolePlayer {
		if req.Side != game.SideWhite && req.Side != game.SideBlack {
			return protocol.Fail(game.ErrSideRequired)
		}
		active, err := a.c.store.ActivePlayerByUser(ctx, a.id, req.UserID)
		if err != nil {
			return protocol.Fail(err)
		}
		if active != nil {
			return protocol.Fail(game.ErrUserAlreadyActive)
		}
		holder, err := a.c.store.ActivePlayerBySide(ctx, a.id, req.Side)
		if err != nil {
			return protocol.Fail(err)
		}
		if holder != nil && holder.UserID != req.UserID {
			return protocol.Fail(game.ErrSideTaken)
		}
		if rec.Status != game.StatusAwait {
			return protocol.Fail(game.ErrGameNotAwaitingPlayers)
		}
	}

	entry := &game.JoinEntry{
		GameID:     a.id,
		UserID:     req.UserID,
		Side:       req.Side,
		Role:       req.Role,
		JoinID:     uuid.NewString(),
		SessionRef: req.ClientID,
	}
	if err := a.c.store.AppendJoin(ctx, entry); err != nil {
		return protocol.Fail(err)
	}

	if rec.Status == game.StatusAwait {
		white, err := a.c.store.ActivePlayerBySide(ctx, a.id, game.SideWhite)
		if err != nil {
			return protocol.Fail(err)
		}
		black, err := a.c.store.ActivePlayerBySide(ctx, a.id, game.SideBlack)
		if err != nil {
			return protocol.Fail(err)
		}
		if white != nil && black != nil && white.UserID != black.UserID {
			rec.Status = game.StatusReady
			if err := a.c.store.UpdateGame(ctx, rec); err != nil {
				return protocol.Fail(err)
			}
		}
	}

	a.c.log.Info("join recorded",
		zap.String("game_id", a.id),
		zap.String("user_id", req.UserID),
		zap.Int("side", int(req.Side)),
		zap.Int("role", int(req.Role)))
	return protocol.OK(snapshot(req.ClientID, rec, entry))
}

// doLeave appends a leave event, clears the original entry's session
// marker and, when an active player walks out mid-game, records the
// surrender.
func (a *gameActor) doLeave(ctx context.Context, req protocol.Request) protocol.Response {
	rec, err := a.c.store.GetGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}

	entry, err := a.liveEntryByJoinID(ctx, req.JoinID)
	if err != nil {
		return protocol.Fail(err)
	}

	leave := &game.JoinEntry{
		GameID: a.id,
		UserID: entry.UserID,
		Side:   game.SideNone,
		Role:   game.RoleAnonymous,
		JoinID: uuid.NewString(),
	}
	if err := a.c.store.AppendJoin(ctx, leave); err != nil {
		return protocol.Fail(err)
	}
	if err := a.c.store.ClearJoinSessionRef(ctx, entry.JoinID); err != nil {
		return protocol.Fail(err)
	}

	if entry.Role == game.RolePlayer && !rec.Status.Terminal() {
		rec.Status = game.SurrenderFor(entry.Side)
		if err := a.c.store.UpdateGame(ctx, rec); err != nil {
			return protocol.Fail(err)
		}
		a.c.log.Info("player surrendered by leaving",
			zap.String("game_id", a.id),
			zap.String("user_id", entry.UserID),
			zap.String("status", string(rec.Status)))
	}

	return protocol.OK(snapshot(req.ClientID, rec, leave))
}

// doMove validates the mover, runs the perk pipeline around the rules
// engine and persists the (possibly perk-rewritten) position. Any
// rejection leaves the record untouched.
func (a *gameActor) doMove(ctx context.Context, req protocol.Request) protocol.Response {
	rec, err := a.c.store.GetGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}
	if rec.Status.Terminal() {
		return protocol.Fail(game.ErrGameAlreadyOver)
	}
	if !rec.Status.Playable() {
		return protocol.Fail(game.ErrGameNotPlayable)
	}

	entry, err := a.liveEntryByJoinID(ctx, req.JoinID)
	if err != nil {
		return protocol.Fail(err)
	}
	if entry.Role != game.RolePlayer || (req.Side != game.SideNone && req.Side != entry.Side) {
		return protocol.Fail(game.ErrNotAPlayer)
	}

	turn, err := a.c.eng.Turn(rec.BoardPosition)
	if err != nil {
		return protocol.Fail(err)
	}
	if turn != entry.Side {
		return protocol.Fail(rules.ErrWrongTurn)
	}

	// Legality is settled before any perk hook runs: an illegal move
	// surfaces its rules error verbatim and never consumes perk state.
	result, err := a.c.eng.ApplyMove(rec.BoardPosition, req.Move)
	if err != nil {
		return protocol.Fail(err)
	}

	before, ok := a.c.perks.RunBefore(a.id, req.ClientID, req.Move, rec.BoardPosition)
	if !ok {
		return protocol.Fail(game.ErrMoveCancelledByPerk)
	}

	position, ok := a.c.perks.RunAfter(a.id, req.ClientID, req.Move, result.Position, before)
	if !ok {
		return protocol.Fail(game.ErrMoveCancelledByPerk)
	}

	rec.BoardPosition = position
	if result.Status == game.StatusContinue {
		rec.Status = game.StatusContinue
	} else {
		rec.Status = result.Status
	}
	if err := a.c.store.UpdateGame(ctx, rec); err != nil {
		return protocol.Fail(err)
	}

	a.c.log.Info("move applied",
		zap.String("game_id", a.id),
		zap.String("move", req.Move),
		zap.String("status", string(rec.Status)))
	return protocol.OK(snapshot(req.ClientID, rec, entry))
}

// doSync is read-only: the current record plus the caller's own live
// ledger entry, defaulting to spectator when the caller holds none.
func (a *gameActor) doSync(ctx context.Context, req protocol.Request) protocol.Response {
	rec, err := a.c.store.GetGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}

	entries, err := a.c.store.JoinsForGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}
	var own *game.JoinEntry
	for i := range entries {
		if entries[i].SessionRef == req.ClientID {
			e := entries[i]
			own = &e
		}
	}
	return protocol.OK(snapshot(req.ClientID, rec, own))
}

// doPerk invokes the extension's apply hook, then stores the application
// record with whatever payload the hook settled on.
func (a *gameActor) doPerk(ctx context.Context, req protocol.Request) protocol.Response {
	rec, err := a.c.store.GetGame(ctx, a.id)
	if err != nil {
		return protocol.Fail(err)
	}
	if !a.c.perks.Has(req.Perk) {
		return protocol.Fail(game.ErrPerkNotRegistered)
	}

	data := map[string]string{}
	for k, v := range req.Data {
		data[k] = v
	}
	if err := a.c.perks.Apply(req.Perk, a.id, req.ClientID, data); err != nil {
		return protocol.Fail(err)
	}

	perkRec := &game.PerkRecord{
		Type:            req.Perk,
		GameID:          a.id,
		OriginSessionID: req.ClientID,
		Payload:         data,
		AppliedAt:       time.Now(),
	}
	if err := a.c.store.AppendPerk(ctx, perkRec); err != nil {
		return protocol.Fail(err)
	}

	a.c.log.Info("perk applied",
		zap.String("game_id", a.id),
		zap.String("type", req.Perk),
		zap.String("client_id", req.ClientID))
	return protocol.OK(snapshot(req.ClientID, rec, nil))
}

func (a *gameActor) liveEntryByJoinID(ctx context.Context, joinID string) (*game.JoinEntry, error) {
	if joinID == "" {
		return nil, game.ErrJoinNotFound
	}
	entries, err := a.c.store.JoinsForGame(ctx, a.id)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].JoinID == joinID && entries[i].Active() {
			e := entries[i]
			return &e, nil
		}
	}
	return nil, game.ErrJoinNotFound
}

// Package client implements the per-connection session mirror. Moves are
// applied optimistically against a local rules engine before the
// coordinator confirms them; the authoritative response reconciles the
// mirror afterwards.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
	"github.com/DoyleJ11/chess-session-backend/internal/perk"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
	"github.com/DoyleJ11/chess-session-backend/internal/rules"
)

// DefaultPendingTTL bounds how long an unconfirmed optimistic move may
// shadow authoritative state.
const DefaultPendingTTL = 10 * time.Second

type pendingMove struct {
	move     string
	expected string
	deadline time.Time
}

// Session is one connection's mirror of a game.
type Session struct {
	mu       sync.Mutex
	clientID string
	userID   string
	gameID   string
	joinID   string
	side     game.Side
	role     game.Role
	position string
	status   game.Status
	pending  *pendingMove

	tr    protocol.Transport
	eng   rules.Engine
	perks *perk.Pipeline
	log   *zap.Logger

	inflight   sync.WaitGroup
	pendingTTL time.Duration
	now        func() time.Time
}

func NewSession(clientID, userID string, tr protocol.Transport, eng rules.Engine, perks *perk.Pipeline, log *zap.Logger) *Session {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	if perks == nil {
		perks = perk.NewPipeline()
	}
	return &Session{
		clientID:   clientID,
		userID:     userID,
		tr:         tr,
		eng:        eng,
		perks:      perks,
		log:        log,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
}

// Create asks the coordinator for a new game; a non-zero side or role
// also seats the creator.
func (s *Session) Create(ctx context.Context, gameID string, side game.Side, role game.Role) (protocol.Data, error) {
	if err := s.requireIdentity(); err != nil {
		return protocol.Data{}, err
	}
	resp := s.tr.Send(ctx, protocol.Request{
		Operation: protocol.OpCreate,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    gameID,
		Side:      side,
		Role:      role,
	})
	return s.settle(resp)
}

func (s *Session) Join(ctx context.Context, gameID string, side game.Side, role game.Role) (protocol.Data, error) {
	if err := s.requireIdentity(); err != nil {
		return protocol.Data{}, err
	}
	if gameID == "" {
		return protocol.Data{}, game.ErrMissingGameID
	}
	resp := s.tr.Send(ctx, protocol.Request{
		Operation: protocol.OpJoin,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    gameID,
		Side:      side,
		Role:      role,
	})
	return s.settle(resp)
}

func (s *Session) Leave(ctx context.Context) (protocol.Data, error) {
	if err := s.requireIdentity(); err != nil {
		return protocol.Data{}, err
	}
	s.mu.Lock()
	gameID, joinID := s.gameID, s.joinID
	s.mu.Unlock()
	if gameID == "" {
		return protocol.Data{}, game.ErrMissingGameID
	}
	if joinID == "" {
		return protocol.Data{}, game.ErrMissingJoinID
	}
	resp := s.tr.Send(ctx, protocol.Request{
		Operation: protocol.OpLeave,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    gameID,
		JoinID:    joinID,
	})
	return s.settle(resp)
}

// Move applies the move locally first. A local rejection never reaches
// the coordinator. On local acceptance the session records a pending
// marker, adopts its own engine's result and dispatches the request
// without blocking further local moves.
func (s *Session) Move(ctx context.Context, move string) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	if move == "" {
		return game.ErrMissingMove
	}

	s.mu.Lock()
	if s.gameID == "" {
		s.mu.Unlock()
		return game.ErrMissingGameID
	}
	if s.joinID == "" {
		s.mu.Unlock()
		return game.ErrMissingJoinID
	}
	if s.side == game.SideNone {
		s.mu.Unlock()
		return game.ErrMissingSide
	}
	if s.status.Terminal() {
		s.mu.Unlock()
		return game.ErrGameAlreadyOver
	}
	if !s.status.Playable() {
		s.mu.Unlock()
		return game.ErrGameNotPlayable
	}

	turn, err := s.eng.Turn(s.position)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if turn != s.side {
		s.mu.Unlock()
		return rules.ErrWrongTurn
	}
	result, err := s.eng.ApplyMove(s.position, move)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	prePosition := s.position
	s.pending = &pendingMove{
		move:     move,
		expected: result.Position,
		deadline: s.now().Add(s.pendingTTL),
	}
	s.position = result.Position
	if result.Status == game.StatusContinue {
		s.status = game.StatusContinue
	} else {
		s.status = result.Status
	}
	req := protocol.Request{
		Operation: protocol.OpMove,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    s.gameID,
		JoinID:    s.joinID,
		Side:      s.side,
		Role:      s.role,
		Move:      move,
	}
	gameID, clientID := s.gameID, s.clientID
	s.mu.Unlock()

	// Mirrored pipeline run is cosmetic only; its verdict never gates
	// the request.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if before, ok := s.perks.RunBefore(gameID, clientID, move, prePosition); ok {
			s.perks.RunAfter(gameID, clientID, move, result.Position, before)
		}
	}()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.onMoveResponse(ctx, s.tr.Send(ctx, req))
	}()
	return nil
}

// Sync refreshes the mirror from authoritative state.
func (s *Session) Sync(ctx context.Context) (protocol.Data, error) {
	if err := s.requireIdentity(); err != nil {
		return protocol.Data{}, err
	}
	s.mu.Lock()
	gameID := s.gameID
	s.mu.Unlock()
	if gameID == "" {
		return protocol.Data{}, game.ErrMissingGameID
	}
	resp := s.tr.Send(ctx, protocol.Request{
		Operation: protocol.OpSync,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    gameID,
	})
	if resp.Error != "" {
		return protocol.Data{}, errors.New(resp.Error)
	}
	s.mu.Lock()
	s.reconcileLocked(resp.Data, false)
	data := *resp.Data
	s.mu.Unlock()
	return data, nil
}

func (s *Session) Perk(ctx context.Context, typ string, data map[string]string) (protocol.Data, error) {
	if err := s.requireIdentity(); err != nil {
		return protocol.Data{}, err
	}
	s.mu.Lock()
	gameID := s.gameID
	s.mu.Unlock()
	if gameID == "" {
		return protocol.Data{}, game.ErrMissingGameID
	}
	resp := s.tr.Send(ctx, protocol.Request{
		Operation: protocol.OpPerk,
		ClientID:  s.clientID,
		UserID:    s.userID,
		GameID:    gameID,
		Perk:      typ,
		Data:      data,
	})
	if resp.Error != "" {
		return protocol.Data{}, errors.New(resp.Error)
	}
	return *resp.Data, nil
}

// Wait blocks until every dispatched move and its reconciliation have
// finished. Test hook; production callers rely on Sync instead.
func (s *Session) Wait() { s.inflight.Wait() }

func (s *Session) ClientID() string { return s.clientID }

func (s *Session) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

func (s *Session) JoinID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinID
}

func (s *Session) Side() game.Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.side
}

func (s *Session) Position() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) Status() game.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PendingMove reports whether an optimistic move is still unconfirmed.
func (s *Session) PendingMove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Session) requireIdentity() error {
	if s.clientID == "" {
		return game.ErrMissingClientID
	}
	if s.userID == "" {
		return game.ErrMissingUserID
	}
	return nil
}

// settle adopts a successful response into the mirror.
func (s *Session) settle(resp protocol.Response) (protocol.Data, error) {
	if resp.Error != "" {
		return protocol.Data{}, errors.New(resp.Error)
	}
	s.mu.Lock()
	s.adoptLocked(resp.Data)
	s.mu.Unlock()
	return *resp.Data, nil
}

// onMoveResponse reconciles the direct response to a dispatched move. A
// rejected move means the record was left unchanged, so the optimistic
// view is stale either way; the mirror resyncs.
func (s *Session) onMoveResponse(ctx context.Context, resp protocol.Response) {
	if resp.Error != "" {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		s.log.Warn("move rejected by coordinator", zap.String("error", resp.Error))
		if _, err := s.Sync(ctx); err != nil {
			s.log.Warn("resync after rejected move failed", zap.Error(err))
		}
		return
	}
	s.mu.Lock()
	s.reconcileLocked(resp.Data, true)
	s.mu.Unlock()
}

// reconcileLocked folds an authoritative view into the mirror. A direct
// response to our own pending move always wins immediately (it may carry
// a perk-rewritten position the local engine could not predict). An
// unrelated sync that disagrees while the pending marker is unexpired is
// held off until the deadline, tolerating benign response reordering.
func (s *Session) reconcileLocked(data *protocol.Data, direct bool) {
	if data == nil {
		return
	}
	if s.pending != nil {
		switch {
		case data.BoardPosition == s.pending.expected:
			s.pending = nil
		case direct || s.now().After(s.pending.deadline):
			s.pending = nil
		default:
			// Keep the optimistic view a little longer; adopt only
			// the identity fields.
			if data.JoinID != "" {
				s.joinID = data.JoinID
				s.side = data.Side
				s.role = data.Role
			}
			return
		}
	}
	s.adoptLocked(data)
}

func (s *Session) adoptLocked(data *protocol.Data) {
	if data == nil {
		return
	}
	if data.GameID != "" {
		s.gameID = data.GameID
	}
	if data.JoinID != "" {
		s.joinID = data.JoinID
		s.side = data.Side
		s.role = data.Role
	}
	s.position = data.BoardPosition
	s.status = data.Status
}

// IsLifecycleError reports whether a coordinator error means the game is
// no longer playable, as opposed to this particular request being bad.
func IsLifecycleError(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "GameNotPlayable") ||
		strings.HasPrefix(err.Error(), "GameAlreadyOver")
}

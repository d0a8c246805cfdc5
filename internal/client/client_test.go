package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/game"
	"github.com/DoyleJ11/chess-session-backend/internal/perk"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
	"github.com/DoyleJ11/chess-session-backend/internal/rules"
	"github.com/DoyleJ11/chess-session-backend/internal/store"
	"github.com/DoyleJ11/chess-session-backend/internal/transport"
)

type transportFunc func(ctx context.Context, req protocol.Request) protocol.Response

func (f transportFunc) Send(ctx context.Context, req protocol.Request) protocol.Response {
	return f(ctx, req)
}

// countingTransport wraps another transport and tallies move requests.
type countingTransport struct {
	inner protocol.Transport
	moves atomic.Int64
}

func (t *countingTransport) Send(ctx context.Context, req protocol.Request) protocol.Response {
	if req.Operation == protocol.OpMove {
		t.moves.Add(1)
	}
	return t.inner.Send(ctx, req)
}

func newBackend(t *testing.T, perks *perk.Pipeline) *coordinator.Coordinator {
	t.Helper()
	if perks == nil {
		perks = perk.NewPipeline()
	}
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateUser(ctx, "alice", "Alice"))
	require.NoError(t, m.CreateUser(ctx, "bob", "Bob"))
	c := coordinator.New(ctx, m, rules.NewChessEngine(), perks, zap.NewNop())
	t.Cleanup(c.Shutdown)
	return c
}

func newSeatedPair(t *testing.T, c *coordinator.Coordinator) (white, black *Session) {
	t.Helper()
	ctx := context.Background()
	tr := transport.NewLocal(c)

	white = NewSession("conn-alice", "alice", tr, rules.NewChessEngine(), nil, zap.NewNop())
	black = NewSession("conn-bob", "bob", tr, rules.NewChessEngine(), nil, zap.NewNop())

	created, err := white.Create(ctx, "", game.SideWhite, game.RolePlayer)
	require.NoError(t, err)
	_, err = black.Join(ctx, created.GameID, game.SideBlack, game.RolePlayer)
	require.NoError(t, err)
	// The creator's mirror still says await; pick up the ready status.
	_, err = white.Sync(ctx)
	require.NoError(t, err)
	return white, black
}

func TestOptimisticMoveMatchesAuthoritative(t *testing.T) {
	c := newBackend(t, nil)
	white, _ := newSeatedPair(t, c)
	ctx := context.Background()

	require.NoError(t, white.Move(ctx, "e2e4"))

	// Before any response arrives the mirror already shows the move.
	expected, err := rules.NewChessEngine().ApplyMove(rules.NewChessEngine().StartingPosition(), "e2e4")
	require.NoError(t, err)
	require.Equal(t, expected.Position, white.Position())
	require.Equal(t, game.StatusContinue, white.Status())

	white.Wait()
	require.False(t, white.PendingMove(), "confirmed move clears the pending marker")

	data, err := white.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, expected.Position, data.BoardPosition)
	require.Equal(t, expected.Position, white.Position())
}

func TestFoolsMateOnBothMirrors(t *testing.T) {
	c := newBackend(t, nil)
	white, black := newSeatedPair(t, c)
	ctx := context.Background()

	play := func(s *Session, mv string) {
		t.Helper()
		require.NoError(t, s.Move(ctx, mv))
		s.Wait()
	}

	play(white, "f2f3")
	_, err := black.Sync(ctx)
	require.NoError(t, err)
	play(black, "e7e5")
	_, err = white.Sync(ctx)
	require.NoError(t, err)
	play(white, "g2g4")
	_, err = black.Sync(ctx)
	require.NoError(t, err)
	play(black, "d8h4")
	_, err = white.Sync(ctx)
	require.NoError(t, err)

	require.Equal(t, game.StatusCheckmate, white.Status())
	require.Equal(t, game.StatusCheckmate, black.Status())

	// Any further move fails locally with a game-over error.
	err = white.Move(ctx, "a2a3")
	require.ErrorIs(t, err, game.ErrGameAlreadyOver)
}

func TestLocallyIllegalMoveNeverReachesCoordinator(t *testing.T) {
	c := newBackend(t, nil)
	counting := &countingTransport{inner: transport.NewLocal(c)}
	ctx := context.Background()

	white := NewSession("conn-alice", "alice", counting, rules.NewChessEngine(), nil, zap.NewNop())
	black := NewSession("conn-bob", "bob", counting, rules.NewChessEngine(), nil, zap.NewNop())
	created, err := white.Create(ctx, "", game.SideWhite, game.RolePlayer)
	require.NoError(t, err)
	_, err = black.Join(ctx, created.GameID, game.SideBlack, game.RolePlayer)
	require.NoError(t, err)
	_, err = white.Sync(ctx)
	require.NoError(t, err)

	err = white.Move(ctx, "e7e5") // black's pawn
	require.ErrorIs(t, err, rules.ErrIllegalMove)
	white.Wait()
	require.Zero(t, counting.moves.Load(), "rejected move must not be dispatched")
}

func TestFieldValidationFailsFast(t *testing.T) {
	calls := 0
	tr := transportFunc(func(ctx context.Context, req protocol.Request) protocol.Response {
		calls++
		return protocol.Response{}
	})
	s := NewSession("conn-x", "alice", tr, rules.NewChessEngine(), nil, zap.NewNop())

	err := s.Move(context.Background(), "e2e4")
	require.ErrorIs(t, err, game.ErrMissingGameID)

	_, err = s.Sync(context.Background())
	require.ErrorIs(t, err, game.ErrMissingGameID)

	_, err = s.Leave(context.Background())
	require.ErrorIs(t, err, game.ErrMissingGameID)

	require.Zero(t, calls, "validation failures never touch the transport")

	anon := NewSession("conn-y", "", tr, rules.NewChessEngine(), nil, zap.NewNop())
	_, err = anon.Create(context.Background(), "", game.SideNone, game.RoleAnonymous)
	require.ErrorIs(t, err, game.ErrMissingUserID)
}

func TestSyncHoldsOptimisticViewUntilDeadline(t *testing.T) {
	eng := rules.NewChessEngine()
	expected, err := eng.ApplyMove(eng.StartingPosition(), "e2e4")
	require.NoError(t, err)

	stale := protocol.Data{
		GameID:        "g1",
		BoardPosition: eng.StartingPosition(),
		Status:        game.StatusReady,
	}
	tr := transportFunc(func(ctx context.Context, req protocol.Request) protocol.Response {
		return protocol.OK(stale)
	})

	now := time.Now()
	s := NewSession("conn-x", "alice", tr, eng, nil, zap.NewNop())
	s.now = func() time.Time { return now }
	s.gameID = "g1"
	s.joinID = "j1"
	s.side = game.SideWhite
	s.role = game.RolePlayer
	s.position = expected.Position
	s.status = game.StatusContinue
	s.pending = &pendingMove{move: "e2e4", expected: expected.Position, deadline: now.Add(10 * time.Second)}

	// A stale sync inside the deadline does not clobber the optimistic view.
	_, err = s.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, expected.Position, s.Position())
	require.True(t, s.PendingMove())

	// Once the deadline elapses, authoritative state wins.
	now = now.Add(11 * time.Second)
	_, err = s.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, eng.StartingPosition(), s.Position())
	require.False(t, s.PendingMove())
}

func TestDirectResponseOverridesOptimisticImmediately(t *testing.T) {
	eng := rules.NewChessEngine()
	expected, err := eng.ApplyMove(eng.StartingPosition(), "e2e4")
	require.NoError(t, err)

	// The coordinator confirms the move but a perk rewrote the position.
	rewritten := protocol.Data{
		GameID:        "g1",
		JoinID:        "j1",
		Side:          game.SideWhite,
		Role:          game.RolePlayer,
		BoardPosition: "rewritten-position",
		Status:        game.StatusContinue,
	}

	s := NewSession("conn-x", "alice", transportFunc(func(ctx context.Context, req protocol.Request) protocol.Response {
		return protocol.OK(rewritten)
	}), eng, nil, zap.NewNop())
	s.gameID = "g1"
	s.joinID = "j1"
	s.side = game.SideWhite
	s.role = game.RolePlayer
	s.position = expected.Position
	s.status = game.StatusContinue
	s.pending = &pendingMove{move: "e2e4", expected: expected.Position, deadline: time.Now().Add(10 * time.Second)}

	s.onMoveResponse(context.Background(), protocol.OK(rewritten))
	require.Equal(t, "rewritten-position", s.Position())
	require.False(t, s.PendingMove())
}

func TestRejectedMoveResyncsTheMirror(t *testing.T) {
	eng := rules.NewChessEngine()
	authoritative := protocol.Data{
		GameID:        "g1",
		BoardPosition: eng.StartingPosition(),
		Status:        game.StatusWhiteSurrender,
	}
	var synced atomic.Bool
	tr := transportFunc(func(ctx context.Context, req protocol.Request) protocol.Response {
		if req.Operation == protocol.OpSync {
			synced.Store(true)
			return protocol.OK(authoritative)
		}
		return protocol.Response{Error: game.ErrGameAlreadyOver.Error()}
	})

	s := NewSession("conn-x", "alice", tr, eng, nil, zap.NewNop())
	s.gameID = "g1"
	s.joinID = "j1"
	s.side = game.SideWhite
	s.role = game.RolePlayer
	s.position = eng.StartingPosition()
	s.status = game.StatusReady

	require.NoError(t, s.Move(context.Background(), "e2e4"))
	s.Wait()

	require.True(t, synced.Load(), "a rejected move triggers a resync")
	require.Equal(t, game.StatusWhiteSurrender, s.Status())
	require.False(t, s.PendingMove())
}

func TestLifecycleErrorClassification(t *testing.T) {
	require.True(t, IsLifecycleError(game.ErrGameAlreadyOver))
	require.True(t, IsLifecycleError(game.ErrGameNotPlayable))
	require.False(t, IsLifecycleError(game.ErrSideTaken))
	require.False(t, IsLifecycleError(nil))
}

func TestPerkErrorsSurfaceToCaller(t *testing.T) {
	c := newBackend(t, nil)
	white, _ := newSeatedPair(t, c)

	_, err := white.Perk(context.Background(), "timewarp", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "PerkNotRegistered")
}

package rules

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ChessEngine implements Engine on top of corentings/chess. Positions are
// FEN strings, moves are UCI coordinate notation ("e2e4", "e7e8q").
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (*ChessEngine) StartingPosition() string { return startingFEN }

func (*ChessEngine) Turn(position string) (game.Side, error) {
	g, err := reconstruct(position)
	if err != nil {
		return game.SideNone, err
	}
	if g.Position().Turn() == nchess.White {
		return game.SideWhite, nil
	}
	return game.SideBlack, nil
}

func (*ChessEngine) ApplyMove(position, move string) (Result, error) {
	g, err := reconstruct(position)
	if err != nil {
		return Result{}, err
	}

	pos := g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, move)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrIllegalMove, move)
	}
	if err := g.Move(mv, nil); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrIllegalMove, move)
	}

	return Result{Position: g.FEN(), Status: statusOf(g)}, nil
}

func statusOf(g *nchess.Game) game.Status {
	switch g.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		return game.StatusCheckmate
	case nchess.Draw:
		if g.Method() == nchess.Stalemate {
			return game.StatusStalemate
		}
		return game.StatusDraw
	default:
		return game.StatusContinue
	}
}

func reconstruct(position string) (*nchess.Game, error) {
	if position == "" {
		return nil, ErrBadPosition
	}
	option, err := nchess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(option), nil
}

package rules

import (
	"errors"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

var ErrWrongTurn = errors.New("invalid turn")
var ErrIllegalMove = errors.New("illegal move")
var ErrBadPosition = errors.New("unreadable board position")

// Result is the outcome of applying one move.
type Result struct {
	Position string
	Status   game.Status // StatusContinue unless the move ended the game
}

// Engine is the legality and terminal-state oracle over an encoded board
// position. Implementations are stateless; all game state travels in the
// position string.
type Engine interface {
	StartingPosition() string
	Turn(position string) (game.Side, error)
	ApplyMove(position, move string) (Result, error)
}

package game

import "fmt"

// Error is a structured protocol error. It always crosses the
// coordinator/client boundary as a string inside the response envelope,
// never as a panic.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Code, e.Message)
}

var (
	// ErrUserUnknown is returned when the requesting user id is not a
	// recognized account.
	ErrUserUnknown error = &Error{
		Code:    "UserUnknown",
		Message: "no such user",
	}

	// ErrGameAlreadyExists is returned by create when the supplied game
	// id already has a record.
	ErrGameAlreadyExists error = &Error{
		Code:    "GameAlreadyExists",
		Message: "a game with that id already exists",
	}

	ErrGameNotFound error = &Error{
		Code:    "GameNotFound",
		Message: "no such game",
	}

	// ErrUserAlreadyActive is returned when a user who already holds an
	// active player entry tries to join again.
	ErrUserAlreadyActive error = &Error{
		Code:    "UserAlreadyActive",
		Message: "user already has an active player entry in this game",
	}

	// ErrSideTaken is returned when the requested side is held by a
	// different active player.
	ErrSideTaken error = &Error{
		Code:    "SideTaken",
		Message: "that side is already held by an active player",
	}

	// ErrSideRequired is returned when a player join names no color.
	ErrSideRequired error = &Error{
		Code:    "SideRequired",
		Message: "a player join must name side 1 or 2",
	}

	// ErrGameNotAwaitingPlayers is returned when a player tries to join
	// after the game has left the await status.
	ErrGameNotAwaitingPlayers error = &Error{
		Code:    "GameNotAwaitingPlayers",
		Message: "the game is no longer accepting players",
	}

	ErrJoinNotFound error = &Error{
		Code:    "JoinNotFound",
		Message: "no live join entry with that id",
	}

	ErrNotAPlayer error = &Error{
		Code:    "NotAPlayer",
		Message: "the join entry is not an active player for that side",
	}

	// ErrGameNotPlayable is returned for moves while the game is still
	// awaiting its players.
	ErrGameNotPlayable error = &Error{
		Code:    "GameNotPlayable",
		Message: "the game is not in a playable status",
	}

	// ErrGameAlreadyOver is returned for moves after a terminal status
	// was reached.
	ErrGameAlreadyOver error = &Error{
		Code:    "GameAlreadyOver",
		Message: "game already over",
	}

	ErrMoveCancelledByPerk error = &Error{
		Code:    "MoveCancelledByPerk",
		Message: "an active perk cancelled the move",
	}

	ErrPerkNotRegistered error = &Error{
		Code:    "PerkNotRegistered",
		Message: "no perk registered under that type",
	}

	ErrUnknownOperation error = &Error{
		Code:    "UnknownOperation",
		Message: "unrecognized operation",
	}

	// ErrServerShuttingDown is returned for requests that arrive while
	// the coordinator is stopping; no operation is lost silently by
	// blocking on a closed hub.
	ErrServerShuttingDown error = &Error{
		Code:    "ServerShuttingDown",
		Message: "the server is shutting down",
	}
)

// Field-presence errors. The client session raises these locally and
// fails fast without contacting the coordinator; the coordinator raises
// the identity pair itself for callers that skip the client layer.
var (
	ErrMissingClientID error = &Error{Code: "MissingClientID", Message: "client id is required"}
	ErrMissingUserID   error = &Error{Code: "MissingUserID", Message: "user id is required"}
	ErrMissingGameID   error = &Error{Code: "MissingGameID", Message: "game id is required"}
	ErrMissingJoinID   error = &Error{Code: "MissingJoinID", Message: "join id is required"}
	ErrMissingSide     error = &Error{Code: "MissingSide", Message: "side is required"}
	ErrMissingMove     error = &Error{Code: "MissingMove", Message: "move is required"}
)

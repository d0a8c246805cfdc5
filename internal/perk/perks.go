package perk

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"sync"
)

// Vanish removes the piece on a target square right after the next move
// is applied. The target is chosen at apply time: either the square named
// in the payload or a server-generated random square, which is written
// back into the payload so every observer sees the same target.
type Vanish struct {
	mu      sync.Mutex
	targets map[string]string // gameID -> square
}

func NewVanish() *Vanish {
	return &Vanish{targets: map[string]string{}}
}

func (*Vanish) Type() string { return "vanish" }

func (v *Vanish) ApplyEffect(gameID, originID string, data map[string]string, p *Pipeline) error {
	square := data["square"]
	if square == "" {
		square = randomSquare()
		data["square"] = square
	}
	if _, _, err := parseSquare(square); err != nil {
		return err
	}
	v.mu.Lock()
	v.targets[gameID] = square
	v.mu.Unlock()
	return nil
}

func (v *Vanish) HandleMoveBefore(gameID, originID, move, position string, p *Pipeline) (map[string]string, bool) {
	v.mu.Lock()
	square := v.targets[gameID]
	v.mu.Unlock()
	return map[string]string{"square": square}, true
}

func (v *Vanish) HandleMoveAfter(gameID, originID, move, result string, before BeforeData, p *Pipeline) (string, bool) {
	v.mu.Lock()
	square, armed := v.targets[gameID]
	v.mu.Unlock()
	if !armed {
		return result, true
	}
	cleared, err := ClearSquare(result, square)
	if err != nil {
		// Unreadable position; keep the target armed for the next move.
		return result, true
	}
	v.mu.Lock()
	delete(v.targets, gameID)
	v.mu.Unlock()
	return cleared, true
}

func randomSquare() string {
	// Black's pawn rank; a vanish with no explicit target thins the
	// second player's pawn line.
	n, err := rand.Int(rand.Reader, big.NewInt(8))
	if err != nil {
		return "a7"
	}
	return string(rune('a'+n.Int64())) + "7"
}

// Guard protects one square for a limited number of move attempts: any
// move landing on the guarded square is cancelled before it reaches the
// board, consuming one charge per cancelled attempt.
type Guard struct {
	mu     sync.Mutex
	guards map[string]*guardState // keyed by gameID
}

type guardState struct {
	square  string
	charges int
}

func NewGuard() *Guard {
	return &Guard{guards: map[string]*guardState{}}
}

func (*Guard) Type() string { return "guard" }

func (g *Guard) ApplyEffect(gameID, originID string, data map[string]string, p *Pipeline) error {
	square := data["square"]
	if square == "" {
		return errors.New("guard requires a square")
	}
	if _, _, err := parseSquare(square); err != nil {
		return err
	}
	charges := 3
	if raw := data["charges"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return errors.New("guard charges must be a positive integer")
		}
		charges = n
	}
	data["charges"] = strconv.Itoa(charges)
	g.mu.Lock()
	g.guards[gameID] = &guardState{square: square, charges: charges}
	g.mu.Unlock()
	return nil
}

func (g *Guard) HandleMoveBefore(gameID, originID, move, position string, p *Pipeline) (map[string]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.guards[gameID]
	if state == nil || state.charges <= 0 || len(move) < 4 {
		return map[string]string{}, true
	}
	if move[2:4] == state.square {
		state.charges--
		if state.charges == 0 {
			delete(g.guards, gameID)
		}
		return nil, false
	}
	return map[string]string{"square": state.square, "charges": strconv.Itoa(state.charges)}, true
}

func (g *Guard) HandleMoveAfter(gameID, originID, move, result string, before BeforeData, p *Pipeline) (string, bool) {
	return result, true
}

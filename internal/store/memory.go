package store

import (
	"context"
	"sync"
	"time"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

// Memory is the reference in-process store.
type Memory struct {
	mu    sync.RWMutex
	games map[string]game.Record
	joins map[string][]game.JoinEntry // keyed by gameID, ascending sequence
	seq   map[string]int64
	perks map[string][]game.PerkRecord
	users map[string]string // id -> display name
}

func NewMemory() *Memory {
	return &Memory{
		games: map[string]game.Record{},
		joins: map[string][]game.JoinEntry{},
		seq:   map[string]int64{},
		perks: map[string][]game.PerkRecord{},
		users: map[string]string{},
	}
}

func (m *Memory) GetGame(ctx context.Context, id string) (*game.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, game.ErrGameNotFound
	}
	return &rec, nil
}

func (m *Memory) CreateGame(ctx context.Context, rec *game.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[rec.ID]; ok {
		return game.ErrGameAlreadyExists
	}
	m.games[rec.ID] = *rec
	return nil
}

func (m *Memory) UpdateGame(ctx context.Context, rec *game.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[rec.ID]; !ok {
		return game.ErrGameNotFound
	}
	rec.UpdatedAt = time.Now()
	m.games[rec.ID] = *rec
	return nil
}

func (m *Memory) AppendJoin(ctx context.Context, entry *game.JoinEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[entry.GameID]++
	entry.Sequence = m.seq[entry.GameID]
	entry.CreatedAt = time.Now()
	m.joins[entry.GameID] = append(m.joins[entry.GameID], *entry)
	return nil
}

func (m *Memory) JoinsForGame(ctx context.Context, gameID string) ([]game.JoinEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.JoinEntry, len(m.joins[gameID]))
	copy(out, m.joins[gameID])
	return out, nil
}

func (m *Memory) ActivePlayerByUser(ctx context.Context, gameID, userID string) (*game.JoinEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.joins[gameID], func(e game.JoinEntry) bool {
		return e.Role == game.RolePlayer && e.Active() && e.UserID == userID
	}), nil
}

func (m *Memory) ActivePlayerBySide(ctx context.Context, gameID string, side game.Side) (*game.JoinEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.joins[gameID], func(e game.JoinEntry) bool {
		return e.Role == game.RolePlayer && e.Active() && e.Side == side
	}), nil
}

func (m *Memory) ClearJoinSessionRef(ctx context.Context, joinID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for gameID, entries := range m.joins {
		for i := range entries {
			if entries[i].JoinID == joinID {
				entries[i].SessionRef = ""
				m.joins[gameID] = entries
				return nil
			}
		}
	}
	return game.ErrJoinNotFound
}

func (m *Memory) AppendPerk(ctx context.Context, rec *game.PerkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perks[rec.GameID] = append(m.perks[rec.GameID], *rec)
	return nil
}

func (m *Memory) PerksForGame(ctx context.Context, gameID string) ([]game.PerkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.PerkRecord, len(m.perks[gameID]))
	copy(out, m.perks[gameID])
	return out, nil
}

func (m *Memory) CreateUser(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = name
	return nil
}

func (m *Memory) UserExists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[id]
	return ok, nil
}

// latest picks the highest-sequence entry matching the predicate. Entries
// are stored ascending, so the last match wins.
func latest(entries []game.JoinEntry, match func(game.JoinEntry) bool) *game.JoinEntry {
	var found *game.JoinEntry
	for i := range entries {
		if match(entries[i]) {
			e := entries[i]
			found = &e
		}
	}
	return found
}

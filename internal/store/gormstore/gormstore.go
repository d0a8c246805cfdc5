// Package gormstore persists the game record and join ledger in Postgres.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/chess-session-backend/internal/game"
)

type gameModel struct {
	ID            string `gorm:"primaryKey"`
	BoardPosition string
	Status        string
	CreatorUserID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (gameModel) TableName() string { return "games" }

type joinModel struct {
	JoinID     string `gorm:"primaryKey"`
	GameID     string `gorm:"index"`
	UserID     string
	Side       int
	Role       int
	Sequence   int64
	SessionRef *string
	CreatedAt  time.Time
}

func (joinModel) TableName() string { return "joins" }

type perkModel struct {
	ID              uint `gorm:"primaryKey"`
	Type            string
	GameID          string `gorm:"index"`
	OriginSessionID string
	Payload         string // JSON-encoded key/value data
	AppliedAt       time.Time
}

func (perkModel) TableName() string { return "perk_applications" }

type userModel struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func (userModel) TableName() string { return "users" }

// Store implements store.Store on Postgres.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&gameModel{}, &joinModel{}, &perkModel{}, &userModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (*game.Record, error) {
	var m gameModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game.Record{
		ID:            m.ID,
		BoardPosition: m.BoardPosition,
		Status:        game.Status(m.Status),
		CreatorUserID: m.CreatorUserID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func (s *Store) CreateGame(ctx context.Context, rec *game.Record) error {
	m := gameModel{
		ID:            rec.ID,
		BoardPosition: rec.BoardPosition,
		Status:        string(rec.Status),
		CreatorUserID: rec.CreatorUserID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return game.ErrGameAlreadyExists
	}
	return err
}

func (s *Store) UpdateGame(ctx context.Context, rec *game.Record) error {
	rec.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(&gameModel{}).Where("id = ?", rec.ID).Updates(map[string]any{
		"board_position": rec.BoardPosition,
		"status":         string(rec.Status),
		"updated_at":     rec.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return game.ErrGameNotFound
	}
	return nil
}

func (s *Store) AppendJoin(ctx context.Context, entry *game.JoinEntry) error {
	entry.CreatedAt = time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		err := tx.Model(&joinModel{}).
			Where("game_id = ?", entry.GameID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return err
		}
		entry.Sequence = maxSeq + 1

		m := joinModel{
			JoinID:    entry.JoinID,
			GameID:    entry.GameID,
			UserID:    entry.UserID,
			Side:      int(entry.Side),
			Role:      int(entry.Role),
			Sequence:  entry.Sequence,
			CreatedAt: entry.CreatedAt,
		}
		if entry.SessionRef != "" {
			ref := entry.SessionRef
			m.SessionRef = &ref
		}
		return tx.Create(&m).Error
	})
}

func (s *Store) JoinsForGame(ctx context.Context, gameID string) ([]game.JoinEntry, error) {
	var models []joinModel
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("sequence asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]game.JoinEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, toEntry(m))
	}
	return entries, nil
}

func (s *Store) ActivePlayerByUser(ctx context.Context, gameID, userID string) (*game.JoinEntry, error) {
	return s.activePlayer(ctx, "game_id = ? AND user_id = ?", gameID, userID)
}

func (s *Store) ActivePlayerBySide(ctx context.Context, gameID string, side game.Side) (*game.JoinEntry, error) {
	return s.activePlayer(ctx, "game_id = ? AND side = ?", gameID, int(side))
}

func (s *Store) activePlayer(ctx context.Context, query string, args ...any) (*game.JoinEntry, error) {
	var m joinModel
	err := s.db.WithContext(ctx).
		Where(query, args...).
		Where("role = ? AND session_ref IS NOT NULL", int(game.RolePlayer)).
		Order("sequence desc").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := toEntry(m)
	return &entry, nil
}

func (s *Store) ClearJoinSessionRef(ctx context.Context, joinID string) error {
	res := s.db.WithContext(ctx).Model(&joinModel{}).
		Where("join_id = ?", joinID).
		Update("session_ref", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return game.ErrJoinNotFound
	}
	return nil
}

func (s *Store) AppendPerk(ctx context.Context, rec *game.PerkRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	m := perkModel{
		Type:            rec.Type,
		GameID:          rec.GameID,
		OriginSessionID: rec.OriginSessionID,
		Payload:         string(payload),
		AppliedAt:       rec.AppliedAt,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) PerksForGame(ctx context.Context, gameID string) ([]game.PerkRecord, error) {
	var models []perkModel
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]game.PerkRecord, 0, len(models))
	for _, m := range models {
		payload := map[string]string{}
		_ = json.Unmarshal([]byte(m.Payload), &payload)
		records = append(records, game.PerkRecord{
			Type:            m.Type,
			GameID:          m.GameID,
			OriginSessionID: m.OriginSessionID,
			Payload:         payload,
			AppliedAt:       m.AppliedAt,
		})
	}
	return records, nil
}

func (s *Store) CreateUser(ctx context.Context, id, name string) error {
	m := userModel{ID: id, Name: name}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func toEntry(m joinModel) game.JoinEntry {
	entry := game.JoinEntry{
		GameID:    m.GameID,
		UserID:    m.UserID,
		Side:      game.Side(m.Side),
		Role:      game.Role(m.Role),
		JoinID:    m.JoinID,
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}
	if m.SessionRef != nil {
		entry.SessionRef = *m.SessionRef
	}
	return entry
}

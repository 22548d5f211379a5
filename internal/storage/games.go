package storage

import (
	"errors"
	"time"

	"gamepricelens/internal/models"

	"gorm.io/gorm"
)

// GameStore manages the tracked-game list.
type GameStore struct {
	db *gorm.DB
}

func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) Create(game *models.Game) error {
	if game.Title == "" {
		game.Title = "Unknown Game"
	}
	if err := s.db.Create(game).Error; err != nil {
		return wrap("create game", err)
	}
	return nil
}

func (s *GameStore) GetByID(id uint) (*models.Game, error) {
	var game models.Game
	err := s.db.First(&game, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get game", err)
	}
	return &game, nil
}

func (s *GameStore) GetByAPIGameID(apiGameID string) (*models.Game, error) {
	var game models.Game
	err := s.db.Where("api_game_id = ?", apiGameID).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get game by api id", err)
	}
	return &game, nil
}

// List returns every tracked game, newest first. Batch refreshes iterate
// this order, so one RefreshAll pass is deterministic.
func (s *GameStore) List() ([]models.Game, error) {
	var games []models.Game
	if err := s.db.Order("created_at DESC, id DESC").Find(&games).Error; err != nil {
		return nil, wrap("list games", err)
	}
	return games, nil
}

// Update persists a title/URL backfill. Games are otherwise immutable.
func (s *GameStore) Update(game *models.Game) error {
	game.UpdatedAt = time.Now().UTC()
	if err := s.db.Save(game).Error; err != nil {
		return wrap("update game", err)
	}
	return nil
}

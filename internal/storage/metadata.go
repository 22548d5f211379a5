package storage

import (
	"encoding/json"
	"errors"
	"time"

	"gamepricelens/internal/models"

	"gorm.io/gorm"
)

// MetadataStore upserts and reads scraped store-page metadata.
type MetadataStore struct {
	db *gorm.DB
}

func NewMetadataStore(db *gorm.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func (s *MetadataStore) Upsert(gameID uint, description *string, tags []string) (*models.GameMetadata, error) {
	var tagsStr *string
	if tags != nil {
		raw, err := json.Marshal(tags)
		if err != nil {
			return nil, wrap("encode tags", err)
		}
		str := string(raw)
		tagsStr = &str
	}
	now := time.Now().UTC()

	var meta models.GameMetadata
	err := s.db.Where("game_id = ?", gameID).First(&meta).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap("get metadata", err)
	}

	meta.GameID = gameID
	meta.Description = description
	meta.Tags = tagsStr
	meta.LastScrapedAt = &now
	if err := s.db.Save(&meta).Error; err != nil {
		return nil, wrap("save metadata", err)
	}
	return &meta, nil
}

func (s *MetadataStore) Get(gameID uint) (*models.GameMetadata, error) {
	var meta models.GameMetadata
	err := s.db.Where("game_id = ?", gameID).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get metadata", err)
	}
	return &meta, nil
}

// DecodeTags unpacks the stored JSON tag list, nil when absent or invalid.
func DecodeTags(meta *models.GameMetadata) []string {
	if meta == nil || meta.Tags == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(*meta.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

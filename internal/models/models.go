package models

import (
	"time"
)

// SourceCheapShark tags snapshots ingested from the CheapShark API.
const SourceCheapShark = "cheapshark"

// Game represents a tracked game
type Game struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Title         string    `json:"title" gorm:"not null"`
	APIGameID     string    `json:"api_game_id" gorm:"column:api_game_id;unique;not null"`
	StoreURL      string    `json:"store_url"`
	CoverImageURL string    `json:"cover_image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PriceSnapshot is one immutable price observation for a game at a store.
// Rows are append-only; only the store name may be rewritten later when a
// placeholder gets backfilled with the real directory entry.
type PriceSnapshot struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	GameID    uint      `json:"-" gorm:"not null;index:idx_snapshots_game_ts,priority:1"`
	Source    string    `json:"source" gorm:"not null"`
	StoreName string    `json:"store_name" gorm:"not null"`
	Price     float64   `json:"price" gorm:"not null"`
	ListPrice *float64  `json:"list_price"`
	Currency  string    `json:"currency" gorm:"not null;default:'USD'"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_snapshots_game_ts,priority:2"`
}

// GameMetadata holds scraped store-page metadata for a game
type GameMetadata struct {
	ID            uint       `json:"-" gorm:"primaryKey"`
	GameID        uint       `json:"-" gorm:"not null;unique"`
	Description   *string    `json:"description" gorm:"type:text"`
	Tags          *string    `json:"-" gorm:"type:text"` // JSON array stored as string
	LastScrapedAt *time.Time `json:"last_scraped_at"`
}

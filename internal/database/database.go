package database

import (
	"fmt"
	"log"
	"time"

	"gamepricelens/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// Migrate creates the schema and makes sure the snapshot lookup index exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Game{},
		&models.PriceSnapshot{},
		&models.GameMetadata{},
	); err != nil {
		return fmt.Errorf("automigration failed: %w", err)
	}
	if err := ensureSnapshotIndex(db); err != nil {
		log.Printf("Migration warning: %v", err)
	}
	return nil
}

// ensureSnapshotIndex adds the (game_id, timestamp) index to price_snapshots
// if automigration did not. Latest-per-store and history queries depend on it.
func ensureSnapshotIndex(db *gorm.DB) error {
	if db.Migrator().HasIndex(&models.PriceSnapshot{}, "idx_snapshots_game_ts") {
		return nil
	}
	if err := db.Migrator().CreateIndex(&models.PriceSnapshot{}, "idx_snapshots_game_ts"); err != nil {
		return fmt.Errorf("failed creating idx_snapshots_game_ts: %w", err)
	}
	log.Println("Added index idx_snapshots_game_ts to price_snapshots")
	return nil
}

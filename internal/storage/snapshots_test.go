package storage

import (
	"testing"
	"time"

	"gamepricelens/internal/database"
	"gamepricelens/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Each pooled connection to :memory: would get its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedGame(t *testing.T, db *gorm.DB, apiGameID string) *models.Game {
	t.Helper()
	game := &models.Game{Title: "Test Game", APIGameID: apiGameID}
	require.NoError(t, db.Create(game).Error)
	return game
}

func seedSnapshot(t *testing.T, db *gorm.DB, gameID uint, store string, price float64, ts time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.PriceSnapshot{
		GameID:    gameID,
		Source:    models.SourceCheapShark,
		StoreName: store,
		Price:     price,
		Currency:  "USD",
		Timestamp: ts,
	}).Error)
}

func TestInsertSnapshotsSharesOneTimestamp(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	listPrice := 59.99
	count, err := store.InsertSnapshots(game.ID, []Observation{
		{StoreName: "Steam", Price: 29.99, ListPrice: &listPrice},
		{StoreName: "GOG", Price: 27.49},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var rows []models.PriceSnapshot
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].Timestamp, rows[1].Timestamp, "batch rows must share one ingestion timestamp")
	assert.Equal(t, models.SourceCheapShark, rows[0].Source)
	assert.Equal(t, "USD", rows[0].Currency)
	require.NotNil(t, rows[0].ListPrice)
	assert.Equal(t, 59.99, *rows[0].ListPrice)
	assert.Nil(t, rows[1].ListPrice)
}

func TestInsertSnapshotsAppendsInsteadOfOverwriting(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	obs := []Observation{{StoreName: "Steam", Price: 19.99}}
	_, err := store.InsertSnapshots(game.ID, obs)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = store.InsertSnapshots(game.ID, obs)
	require.NoError(t, err)

	var rows []models.PriceSnapshot
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2, "identical deals across two batches stay distinct rows")
	assert.NotEqual(t, rows[0].Timestamp, rows[1].Timestamp)
}

func TestInsertSnapshotsEmptyBatch(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	count, err := store.InsertSnapshots(game.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLatestPerStore(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "A", 10, t1)
	seedSnapshot(t, db, game.ID, "A", 15, t2)
	seedSnapshot(t, db, game.ID, "B", 5, t1)

	latest, err := store.LatestPerStore(game.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "A", latest[0].StoreName)
	assert.Equal(t, 15.0, latest[0].Price)
	assert.Equal(t, "B", latest[1].StoreName)
	assert.Equal(t, 5.0, latest[1].Price)
}

func TestLatestPerStoreTimestampTieKeepsLowestID(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "Steam", 12, ts)
	seedSnapshot(t, db, game.ID, "Steam", 14, ts)

	latest, err := store.LatestPerStore(game.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 12.0, latest[0].Price)
}

func TestLatestPerStoreIgnoresOtherGames(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	other := seedGame(t, db, "g2")
	store := NewSnapshotStore(db)

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "Steam", 12, ts)
	seedSnapshot(t, db, other.ID, "Steam", 3, ts.Add(time.Hour))

	latest, err := store.LatestPerStore(game.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 12.0, latest[0].Price)
}

func TestDailyMinHistory(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	day1 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "A", 20, day1)
	seedSnapshot(t, db, game.ID, "B", 15, day1.Add(2*time.Hour))
	seedSnapshot(t, db, game.ID, "C", 30, day1.Add(4*time.Hour))
	seedSnapshot(t, db, game.ID, "A", 25, day2)

	history, err := store.DailyMinHistory(game.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-08-01", history[0].Date)
	assert.Equal(t, 15.0, history[0].MinPrice)
	assert.Equal(t, "2026-08-02", history[1].Date)
	assert.Equal(t, 25.0, history[1].MinPrice)
}

func TestDateOnlyNormalizesBackendForms(t *testing.T) {
	// SQLite hands DATE() back as a bare date; MySQL with parseTime=True
	// returns a full timestamp. Both must collapse to YYYY-MM-DD.
	assert.Equal(t, "2026-08-01", dateOnly("2026-08-01"))
	assert.Equal(t, "2026-08-01", dateOnly("2026-08-01T00:00:00Z"))
	assert.Equal(t, "2026-08-01", dateOnly("2026-08-01 00:00:00 +0000 UTC"))
	assert.Equal(t, "", dateOnly(""))
}

func TestRenameStoreOccurrences(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "Store 7", 10, ts)
	seedSnapshot(t, db, game.ID, "  store 7", 11, ts)
	seedSnapshot(t, db, game.ID, "MyStore 7", 12, ts)
	seedSnapshot(t, db, game.ID, "GOG", 13, ts)

	count, err := store.RenameStoreOccurrences("7", "GOG")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only anchored placeholder names are rewritten")

	var names []string
	require.NoError(t, db.Model(&models.PriceSnapshot{}).Order("id").Pluck("store_name", &names).Error)
	assert.Equal(t, []string{"GOG", "GOG", "MyStore 7", "GOG"}, names)

	// Second pass with the same directory touches nothing.
	count, err = store.RenameStoreOccurrences("7", "GOG")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBestPrice(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	// Steam was cheapest at t1 but its current price is higher; current
	// prices are what the best-price view looks at.
	seedSnapshot(t, db, game.ID, "Steam", 5, t1)
	seedSnapshot(t, db, game.ID, "Steam", 20, t2)
	seedSnapshot(t, db, game.ID, "GOG", 12, t1)

	best, err := store.BestPrice(game.ID)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "GOG", best.StoreName)
	assert.Equal(t, 12.0, best.Price)
}

func TestBestPriceTieBreaksOnFirstStore(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seedSnapshot(t, db, game.ID, "Steam", 9.99, ts)
	seedSnapshot(t, db, game.ID, "GOG", 9.99, ts)

	best, err := store.BestPrice(game.ID)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "GOG", best.StoreName, "ties resolve to the first store in latest-per-store order")
}

func TestBestPriceNoSnapshots(t *testing.T) {
	db := setupTestDB(t)
	game := seedGame(t, db, "g1")
	store := NewSnapshotStore(db)

	best, err := store.BestPrice(game.ID)
	require.NoError(t, err)
	assert.Nil(t, best)
}

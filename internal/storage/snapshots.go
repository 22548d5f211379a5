package storage

import (
	"strings"
	"time"

	"gamepricelens/internal/models"

	"gorm.io/gorm"
)

// Observation is one raw per-store deal extracted from an upstream response,
// already carrying its resolved store name.
type Observation struct {
	StoreName string
	Price     float64
	ListPrice *float64
	Currency  string
}

// HistoryPoint is one day of the aggregated price history.
type HistoryPoint struct {
	Date     string  `json:"date"`
	MinPrice float64 `json:"min_price"`
}

// SnapshotStore persists and queries price snapshots. History is append-only:
// every ingestion writes new rows and never touches prior ones, except for
// RenameStoreOccurrences which backfills placeholder store names.
type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// InsertSnapshots appends one row per observation. All rows from a single
// call share one ingestion timestamp so latest-per-store comparisons treat
// the batch atomically. Duplicate (store, price) pairs are welcome; that is
// what makes the history. Returns the number of rows written.
func (s *SnapshotStore) InsertSnapshots(gameID uint, observations []Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]models.PriceSnapshot, 0, len(observations))
	for _, obs := range observations {
		currency := obs.Currency
		if currency == "" {
			currency = "USD"
		}
		rows = append(rows, models.PriceSnapshot{
			GameID:    gameID,
			Source:    models.SourceCheapShark,
			StoreName: obs.StoreName,
			Price:     obs.Price,
			ListPrice: obs.ListPrice,
			Currency:  currency,
			Timestamp: now,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, wrap("insert snapshots", err)
	}
	return len(rows), nil
}

// LatestPerStore returns, for each distinct store name attached to the game,
// the single snapshot with the maximum timestamp. Ties on an identical max
// timestamp resolve to the lowest row id. Results are ordered by store name.
func (s *SnapshotStore) LatestPerStore(gameID uint) ([]models.PriceSnapshot, error) {
	var rows []models.PriceSnapshot
	err := s.db.Raw(`
        SELECT s.*
        FROM price_snapshots s
        INNER JOIN (
            SELECT store_name, MAX(timestamp) AS max_ts
            FROM price_snapshots
            WHERE game_id = ?
            GROUP BY store_name
        ) latest ON s.store_name = latest.store_name AND s.timestamp = latest.max_ts
        WHERE s.game_id = ?
        ORDER BY s.store_name ASC, s.id ASC
    `, gameID, gameID).Scan(&rows).Error
	if err != nil {
		return nil, wrap("latest per store", err)
	}

	// Equal max timestamps for the same store yield several rows; keep the
	// first (lowest id) per store.
	out := rows[:0]
	seen := map[string]bool{}
	for _, row := range rows {
		if seen[row.StoreName] {
			continue
		}
		seen[row.StoreName] = true
		out = append(out, row)
	}
	return out, nil
}

// DailyMinHistory buckets the game's snapshots by UTC calendar date and
// reports the minimum price per day, ascending. Days without observations
// produce no point.
func (s *SnapshotStore) DailyMinHistory(gameID uint) ([]HistoryPoint, error) {
	var points []HistoryPoint
	err := s.db.Raw(`
        SELECT DATE(timestamp) AS date, MIN(price) AS min_price
        FROM price_snapshots
        WHERE game_id = ?
        GROUP BY DATE(timestamp)
        ORDER BY DATE(timestamp) ASC
    `, gameID).Scan(&points).Error
	if err != nil {
		return nil, wrap("daily min history", err)
	}
	for i := range points {
		points[i].Date = dateOnly(points[i].Date)
	}
	return points, nil
}

// dateOnly trims a DATE() bucket down to YYYY-MM-DD. MySQL with
// parseTime=True hands the bucket back as a full RFC3339 timestamp while
// SQLite returns the bare date; both start with the date itself.
func dateOnly(value string) string {
	if len(value) > 10 {
		return value[:10]
	}
	return value
}

// RenameStoreOccurrences rewrites snapshots still carrying the placeholder
// name "Store <storeID>" (case-insensitive, leading whitespace tolerated)
// to newName. Correctly named rows are never touched, so running it again
// with the same directory updates nothing.
func (s *SnapshotStore) RenameStoreOccurrences(storeID, newName string) (int64, error) {
	placeholder := strings.ToLower("Store " + storeID)
	res := s.db.Model(&models.PriceSnapshot{}).
		Where("LOWER(LTRIM(store_name)) = ? AND store_name <> ?", placeholder, newName).
		Update("store_name", newName)
	if res.Error != nil {
		return 0, wrap("rename store occurrences", res.Error)
	}
	return res.RowsAffected, nil
}

// BestPrice returns the cheapest snapshot among the game's current
// (latest-per-store) prices, or nil when the game has no snapshots.
// Ties resolve to the first store in LatestPerStore order.
func (s *SnapshotStore) BestPrice(gameID uint) (*models.PriceSnapshot, error) {
	latest, err := s.LatestPerStore(gameID)
	if err != nil {
		return nil, err
	}
	var best *models.PriceSnapshot
	for i := range latest {
		if best == nil || latest[i].Price < best.Price {
			best = &latest[i]
		}
	}
	return best, nil
}

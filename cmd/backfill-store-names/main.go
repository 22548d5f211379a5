// Backfills placeholder store names ("Store <id>") left on snapshots that
// were ingested before the store directory was available. Safe to run
// repeatedly; already-correct rows are never touched.
package main

import (
	"context"
	"flag"
	"log"
	"sort"
	"time"

	"gamepricelens/internal/config"
	"gamepricelens/internal/database"
	"gamepricelens/internal/services/cheapshark"
	"gamepricelens/internal/storage"

	"github.com/joho/godotenv"
)

var timeout = flag.Duration("timeout", 30*time.Second, "store directory fetch timeout")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := cheapshark.NewClient(cfg.CheapSharkAPIURL)
	stores, err := client.GetStoreDirectory(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch store directory: %v", err)
	}
	log.Printf("Fetched %d store directory entries", len(stores))

	sort.Slice(stores, func(i, j int) bool { return stores[i].StoreID < stores[j].StoreID })

	snapshots := storage.NewSnapshotStore(db)
	var total int64
	for _, store := range stores {
		if store.StoreID == "" || store.StoreName == "" {
			continue
		}
		count, err := snapshots.RenameStoreOccurrences(store.StoreID, store.StoreName)
		if err != nil {
			log.Fatalf("Failed to rename store %s: %v", store.StoreID, err)
		}
		if count > 0 {
			log.Printf("Store %s -> %q: %d rows updated", store.StoreID, store.StoreName, count)
		}
		total += count
	}
	log.Printf("Done. %d rows updated.", total)
}

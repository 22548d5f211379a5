package cheapshark

import (
	"context"
	"log"
	"sync"
)

// UnknownStoreName is returned for deals that carry no store identifier at all.
const UnknownStoreName = "Unknown store"

// PlaceholderStoreName synthesizes the stand-in name used when the store
// directory has no entry (yet) for the given id. The snapshot store rewrites
// these once the directory becomes available.
func PlaceholderStoreName(storeID string) string {
	return "Store " + storeID
}

// DirectoryFetcher is the slice of the client the resolver needs.
type DirectoryFetcher interface {
	GetStoreDirectory(ctx context.Context) ([]Store, error)
}

// Resolver maps opaque store ids to display names through a refreshable
// in-process cache. An empty cache is a degraded state, not an error:
// resolution falls back to placeholders and never blocks ingestion.
type Resolver struct {
	directory DirectoryFetcher

	mu    sync.RWMutex
	cache map[string]string
}

func NewResolver(directory DirectoryFetcher) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve picks the display name for a deal: an explicit upstream name wins,
// then the cached directory entry, then the placeholder. Deals without any
// identifier resolve to UnknownStoreName.
func (r *Resolver) Resolve(deal Deal) string {
	if deal.StoreName != "" {
		return deal.StoreName
	}
	if deal.StoreID == "" {
		return UnknownStoreName
	}

	r.mu.RLock()
	name, ok := r.cache[deal.StoreID]
	r.mu.RUnlock()
	if ok && name != "" {
		return name
	}
	return PlaceholderStoreName(deal.StoreID)
}

// GetStoreMap returns a copy of the cached id-to-name map, refetching the
// directory first when the cache is empty or forceRefresh is set. A failed
// fetch keeps whatever cache existed; this call never fails the surrounding
// refresh.
func (r *Resolver) GetStoreMap(ctx context.Context, forceRefresh bool) map[string]string {
	r.mu.RLock()
	cached := len(r.cache)
	r.mu.RUnlock()

	if cached == 0 || forceRefresh {
		stores, err := r.directory.GetStoreDirectory(ctx)
		if err != nil {
			log.Printf("[resolver] store directory refresh failed, keeping %d cached entries: %v", cached, err)
		} else {
			fresh := make(map[string]string, len(stores))
			for _, store := range stores {
				if store.StoreID != "" && store.StoreName != "" {
					fresh[store.StoreID] = store.StoreName
				}
			}
			r.mu.Lock()
			r.cache = fresh
			r.mu.Unlock()
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.cache))
	for id, name := range r.cache {
		out[id] = name
	}
	return out
}

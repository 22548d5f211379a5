package refresher

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"gamepricelens/internal/models"
	"gamepricelens/internal/services/cheapshark"
	"gamepricelens/internal/storage"
)

// PriceSource is the slice of the upstream client the refresher needs.
type PriceSource interface {
	GetGameDetails(ctx context.Context, apiGameID string) (*cheapshark.GameDetails, error)
}

// Summary reports one refresh pass. GamesProcessed counts every attempt,
// SnapshotsInserted only rows actually written.
type Summary struct {
	GamesProcessed    int `json:"games_processed"`
	SnapshotsInserted int `json:"snapshots_inserted"`
}

// Event is broadcast to listeners after a completed refresh pass.
type Event struct {
	Trigger string    `json:"trigger"`
	Summary Summary   `json:"summary"`
	At      time.Time `json:"at"`
}

// EventSink receives refresh events. Publish must not block.
type EventSink interface {
	Publish(event Event)
}

// Refresher drives price ingestion: fetch upstream deals per game, resolve
// store names, append snapshots. RefreshAll is the tolerant batch mode used
// by the scheduler; RefreshGame is the strict mode that hands upstream
// failures straight back to the caller.
type Refresher struct {
	games     *storage.GameStore
	snapshots *storage.SnapshotStore
	source    PriceSource
	resolver  *cheapshark.Resolver
	sink      EventSink
}

func New(games *storage.GameStore, snapshots *storage.SnapshotStore, source PriceSource, resolver *cheapshark.Resolver) *Refresher {
	return &Refresher{
		games:     games,
		snapshots: snapshots,
		source:    source,
		resolver:  resolver,
	}
}

// SetEventSink attaches an optional listener for completed refresh passes.
func (r *Refresher) SetEventSink(sink EventSink) {
	r.sink = sink
}

// RefreshGame ingests current deals for a single game and returns the number
// of snapshots written. Upstream failures propagate verbatim; the caller is
// waiting synchronously and must see them.
func (r *Refresher) RefreshGame(ctx context.Context, game *models.Game) (int, error) {
	details, err := r.source.GetGameDetails(ctx, game.APIGameID)
	if err != nil {
		return 0, err
	}

	if err := r.backfillGameInfo(game, details); err != nil {
		return 0, err
	}

	observations := r.ExtractObservations(details)
	if len(observations) == 0 {
		return 0, nil
	}
	return r.snapshots.InsertSnapshots(game.ID, observations)
}

// RefreshAll sweeps every tracked game in list order. An upstream failure
// for one game is logged and the sweep moves on; a storage failure aborts
// the pass. After the loop the store directory is force-refreshed and any
// placeholder names left behind by earlier games are reconciled.
func (r *Refresher) RefreshAll(ctx context.Context, trigger string) (Summary, error) {
	games, err := r.games.List()
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for i := range games {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		game := &games[i]
		summary.GamesProcessed++

		count, err := r.RefreshGame(ctx, game)
		if err != nil {
			var upstream *cheapshark.UpstreamError
			if errors.As(err, &upstream) {
				log.Printf("[refresher] failed to refresh game %d (%s): %v", game.ID, game.Title, err)
				continue
			}
			return summary, err
		}
		summary.SnapshotsInserted += count
	}

	if err := r.reconcileStoreNames(ctx); err != nil {
		return summary, err
	}

	if r.sink != nil {
		r.sink.Publish(Event{Trigger: trigger, Summary: summary, At: time.Now().UTC()})
	}
	return summary, nil
}

// ExtractObservations turns a details payload into store-resolved
// observations ready for insertion.
func (r *Refresher) ExtractObservations(details *cheapshark.GameDetails) []storage.Observation {
	observations := make([]storage.Observation, 0, len(details.Deals))
	for _, deal := range details.Deals {
		observations = append(observations, storage.Observation{
			StoreName: r.resolver.Resolve(deal),
			Price:     deal.Price,
			ListPrice: deal.RetailPrice,
			Currency:  "USD",
		})
	}
	return observations
}

// backfillGameInfo fills in title and URLs for games created before the
// catalog had them. Games are immutable apart from this.
func (r *Refresher) backfillGameInfo(game *models.Game, details *cheapshark.GameDetails) error {
	changed := false
	if (game.Title == "" || game.Title == "Unknown Game") && details.Info.Title != "" {
		game.Title = details.Info.Title
		changed = true
	}
	if game.StoreURL == "" && details.Info.SteamAppID != "" {
		game.StoreURL = "https://store.steampowered.com/app/" + details.Info.SteamAppID
		changed = true
	}
	if game.CoverImageURL == "" && details.Info.Thumb != "" {
		game.CoverImageURL = details.Info.Thumb
		changed = true
	}
	if !changed {
		return nil
	}
	return r.games.Update(game)
}

// reconcileStoreNames backfills placeholder store names using a freshly
// fetched directory. Games refreshed before the directory was warm may have
// written "Store <id>" rows; this is where those get their real names.
func (r *Refresher) reconcileStoreNames(ctx context.Context) error {
	storeMap := r.resolver.GetStoreMap(ctx, true)
	if len(storeMap) == 0 {
		return nil
	}

	ids := make([]string, 0, len(storeMap))
	for id := range storeMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var renamed int64
	for _, id := range ids {
		count, err := r.snapshots.RenameStoreOccurrences(id, storeMap[id])
		if err != nil {
			return err
		}
		renamed += count
	}
	if renamed > 0 {
		log.Printf("[refresher] backfilled %d placeholder store names", renamed)
	}
	return nil
}

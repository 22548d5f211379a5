package refresher

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler runs batch refreshes on a fixed interval in the background. The
// loop never exits on a refresh error; everything is caught, logged and the
// next tick tried. Stop cancels the loop between ticks.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(refresher *Refresher, interval time.Duration) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	log.Printf("[scheduler] starting price refresh scheduler (interval: %v)", s.interval)
	// run gets its own done channel; a Stop/Start pair may replace s.done
	// before this goroutine's defer fires.
	go s.run(ctx, done)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("[scheduler] stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scheduled refresh pass. Exported so tests can
// drive an iteration without waiting on the wall clock.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] refresh panicked: %v", r)
		}
	}()

	log.Println("[scheduler] starting scheduled price refresh")
	summary, err := s.refresher.RefreshAll(ctx, "scheduler")
	if err != nil {
		log.Printf("[scheduler] price refresh failed: %v", err)
		return
	}
	log.Printf("[scheduler] price refresh complete: processed %d games, inserted %d snapshots",
		summary.GamesProcessed, summary.SnapshotsInserted)
}

package recordings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// Lister is the part of AgentClient the Syncer needs.
type Lister interface {
	List(ctx context.Context, desc targets.ConnectionDescriptor) ([]Recording, error)
}

// Syncer periodically copies every discovered target's recording list into
// the catalog. Unreachable targets keep their last known entries; targets
// that disappear from discovery are removed.
type Syncer struct {
	targets  targets.Lister
	agent    Lister
	catalog  Catalog
	interval time.Duration
	workers  int64
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]bool
}

func NewSyncer(lister targets.Lister, agent Lister, catalog Catalog, interval time.Duration, workers int, logger *slog.Logger) *Syncer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		targets:  lister,
		agent:    agent,
		catalog:  catalog,
		interval: interval,
		workers:  int64(workers),
		logger:   logger.With("component", "recording_syncer"),
		known:    make(map[string]bool),
	}
}

// Run syncs immediately and then on every tick until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	s.SyncOnce(ctx)
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce performs one pass over all discovered targets.
func (s *Syncer) SyncOnce(ctx context.Context) {
	current := s.targets.ListTargets()
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup

	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[t.ID] = true
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(t targets.Target) {
			defer wg.Done()
			defer sem.Release(1)
			s.syncTarget(ctx, t)
		}(t)
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.known {
		if seen[id] {
			continue
		}
		if err := s.catalog.DeleteTarget(ctx, id); err != nil {
			s.logger.Warn("Failed to drop recordings of lost target", "target_id", id, "error", err)
			continue
		}
		delete(s.known, id)
	}
	for id := range seen {
		s.known[id] = true
	}
}

func (s *Syncer) syncTarget(ctx context.Context, t targets.Target) {
	desc := targets.NewConnectionDescriptor(t.ID, t.AgentURL, nil)
	recs, err := s.agent.List(ctx, desc)
	if err != nil {
		s.logger.Debug("Skipping unreachable target", "target_id", t.ID, "error", err)
		return
	}
	if err := s.catalog.Replace(ctx, t.ID, recs); err != nil {
		s.logger.Warn("Failed to store recordings", "target_id", t.ID, "error", err)
		return
	}
	s.logger.Debug("Synced recordings", "target_id", t.ID, "count", len(recs))
}

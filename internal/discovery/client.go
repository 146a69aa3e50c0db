package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jfrlite/jfrlite/internal/notifications"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// ScanFunc returns the full set of targets currently visible to a source.
type ScanFunc func(ctx context.Context) ([]targets.Target, error)

// Combine merges several scans. A target ID seen twice keeps the first entry.
// The merged scan fails only if every part fails.
func Combine(scans ...ScanFunc) ScanFunc {
	return func(ctx context.Context) ([]targets.Target, error) {
		var (
			out  []targets.Target
			seen = make(map[string]bool)
			errs []error
		)
		for _, scan := range scans {
			found, err := scan(ctx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, t := range found {
				if seen[t.ID] {
					continue
				}
				seen[t.ID] = true
				out = append(out, t)
			}
		}
		if len(errs) == len(scans) && len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return out, nil
	}
}

// Client keeps the latest result of a ScanFunc and publishes changes as
// TargetDiscovered and TargetLost notifications.
type Client struct {
	name     string
	scan     ScanFunc
	interval time.Duration
	hub      *notifications.Hub
	logger   *slog.Logger

	mu      sync.RWMutex
	current map[string]targets.Target

	trigger   chan struct{}
	startOnce sync.Once
}

// NewClient creates a discovery client. hub may be nil. An interval of zero
// disables periodic refresh; Trigger still works.
func NewClient(name string, scan ScanFunc, interval time.Duration, hub *notifications.Hub, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:     name,
		scan:     scan,
		interval: interval,
		hub:      hub,
		logger:   logger.With("component", "discovery", "source", name),
		current:  make(map[string]targets.Target),
		trigger:  make(chan struct{}, 1),
	}
}

func (c *Client) Name() string {
	return c.name
}

// ListTargets returns the discovered targets ordered by ID.
func (c *Client) ListTargets() []targets.Target {
	c.mu.RLock()
	out := make([]targets.Target, 0, len(c.current))
	for _, t := range c.current {
		out = append(out, t)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Refresh runs one scan and applies the difference to the current set.
func (c *Client) Refresh(ctx context.Context) error {
	found, err := c.scan(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]targets.Target, len(found))
	for _, t := range found {
		next[t.ID] = t
	}

	c.mu.Lock()
	prev := c.current
	c.current = next
	c.mu.Unlock()

	for id, t := range next {
		if _, ok := prev[id]; !ok {
			c.logger.Debug("Target discovered", "target_id", id, "agent_url", t.AgentURL)
			c.publish(t, true)
		}
	}
	for id, t := range prev {
		if _, ok := next[id]; !ok {
			c.logger.Debug("Target lost", "target_id", id)
			c.publish(t, false)
		}
	}
	return nil
}

func (c *Client) publish(t targets.Target, discovered bool) {
	if c.hub == nil {
		return
	}
	event := notifications.TargetEvent{
		TargetID:  t.ID,
		AgentURL:  t.AgentURL,
		Source:    t.Source,
		Timestamp: time.Now(),
	}
	var ok bool
	if discovered {
		ok = c.hub.PublishTargetDiscovered(event)
	} else {
		ok = c.hub.PublishTargetLost(event)
	}
	if !ok {
		c.logger.Warn("Dropped target notification", "target_id", t.ID)
	}
}

// Trigger requests an immediate refresh from the background loop.
func (c *Client) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Start performs an initial refresh and then refreshes in the background
// until ctx is cancelled. Calling Start more than once has no effect.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("Initial discovery scan failed", "error", err)
		}
		go c.run(ctx)
	})
}

func (c *Client) run(ctx context.Context) {
	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-c.trigger:
		}
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("Discovery scan failed", "error", err)
		}
	}
}

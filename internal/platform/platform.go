// Package platform detects the environment jfrlite runs in and selects the
// strategy that supplies target discovery and request authentication.
package platform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/config"
	"github.com/jfrlite/jfrlite/internal/discovery"
	"github.com/jfrlite/jfrlite/internal/notifications"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// Priority orders strategies. Higher values are preferred.
type Priority int

const (
	PriorityDefault  Priority = 0
	PriorityLow      Priority = 25
	PriorityMedium   Priority = 50
	PriorityHigh     Priority = 75
	PriorityVeryHigh Priority = 100
)

// Strategy is one way of running on a platform.
//
// Available must be cheap and free of side effects. Client and AuthManager are
// only called on the selected strategy and may build wiring and log.
type Strategy interface {
	Name() string
	Available() bool
	Priority() Priority
	Client() (*Client, error)
	AuthManager() (auth.Manager, error)
}

// Deps are the shared inputs every strategy builds from.
type Deps struct {
	Config *config.Config
	Hub    *notifications.Hub
	Logger *slog.Logger

	// Environ, ServiceAccountDir and ProcRoot default to the real system values.
	Environ           func() []string
	ServiceAccountDir string
	ProcRoot          string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) serviceAccountDir() string {
	if d.ServiceAccountDir == "" {
		return discovery.ServiceAccountDir
	}
	return d.ServiceAccountDir
}

// Watcher is a background task tied to a discovery client, such as a
// filesystem watch that triggers refreshes.
type Watcher func(ctx context.Context, c *discovery.Client) error

// Client is the platform's view of discoverable targets plus the notification
// hub that discovery publishes to.
type Client struct {
	discovery *discovery.Client
	hub       *notifications.Hub
	watchers  []Watcher
	logger    *slog.Logger

	startOnce sync.Once
}

// NewClient wraps a discovery client. hub may be nil.
func NewClient(d *discovery.Client, hub *notifications.Hub, logger *slog.Logger, watchers ...Watcher) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{discovery: d, hub: hub, watchers: watchers, logger: logger}
}

// ListTargets implements targets.Lister.
func (c *Client) ListTargets() []targets.Target {
	return c.discovery.ListTargets()
}

// Notifications returns the hub discovery events are published to.
func (c *Client) Notifications() *notifications.Hub {
	return c.hub
}

// Source names the discovery source backing this client.
func (c *Client) Source() string {
	return c.discovery.Name()
}

// Start begins discovery and any watchers. It returns immediately.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.discovery.Start(ctx)
		for _, w := range c.watchers {
			go func(w Watcher) {
				if err := w(ctx, c.discovery); err != nil {
					c.logger.Warn("Discovery watcher stopped", "source", c.discovery.Name(), "error", err)
				}
			}(w)
		}
	})
}

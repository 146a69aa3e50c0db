package platform

import (
	"context"
	"fmt"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/discovery"
)

// DefaultStrategy runs anywhere. It discovers JVMs on the local host and the
// configured static targets, and performs no request authentication.
type DefaultStrategy struct {
	deps Deps
}

func NewDefaultStrategy(deps Deps) *DefaultStrategy {
	return &DefaultStrategy{deps: deps}
}

func (s *DefaultStrategy) Name() string { return "default" }

func (s *DefaultStrategy) Available() bool { return true }

func (s *DefaultStrategy) Priority() Priority { return PriorityDefault }

func (s *DefaultStrategy) Client() (*Client, error) {
	logger := s.deps.logger()
	logger.Info("Selected Default Platform Strategy")

	cfg := s.deps.Config.Discovery
	static, err := discovery.StaticScan(cfg.StaticTargets, cfg.AgentPort)
	if err != nil {
		return nil, fmt.Errorf("invalid static targets: %w", err)
	}

	local := discovery.NewLocalScanner(cfg.HsperfdataRoot, logger)
	if s.deps.ProcRoot != "" {
		local.ProcRoot = s.deps.ProcRoot
	}

	d := discovery.NewClient(s.Name(), discovery.Combine(static, local.Scan),
		cfg.RefreshInterval(), s.deps.Hub, logger)
	watch := func(ctx context.Context, c *discovery.Client) error {
		return local.Watch(ctx, c)
	}
	return NewClient(d, s.deps.Hub, logger, watch), nil
}

func (s *DefaultStrategy) AuthManager() (auth.Manager, error) {
	return auth.NewNoopManager(), nil
}

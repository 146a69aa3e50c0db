package platform

import (
	"fmt"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/discovery"
)

var strategyOrder = []string{"kubeapi", "kubeenv", "default"}

// NewStrategies registers the strategies named in config, in order. An empty
// list registers every strategy. The default strategy is always present.
func NewStrategies(deps Deps) *Registry {
	names := deps.Config.Platform.Strategies
	if len(names) == 0 {
		names = strategyOrder
	}

	r := NewRegistry()
	hasDefault := false
	for _, name := range names {
		switch name {
		case "kubeapi":
			r.Register(NewKubeAPIStrategy(deps))
		case "kubeenv":
			r.Register(NewKubeEnvStrategy(deps))
		case "default":
			r.Register(NewDefaultStrategy(deps))
			hasDefault = true
		}
	}
	if !hasDefault {
		r.Register(NewDefaultStrategy(deps))
	}
	return r
}

// ConfiguredAuth returns an AuthFactory for auth.manager in config. An empty
// setting keeps the selected strategy's manager.
func ConfiguredAuth(deps Deps) AuthFactory {
	return func() (auth.Manager, error) {
		cfg := deps.Config.Auth
		switch cfg.Manager {
		case "":
			return nil, nil
		case "noop":
			return auth.NewNoopManager(), nil
		case "basic":
			m, err := auth.LoadBasicManager(cfg.UsersFile)
			if err != nil {
				return nil, err
			}
			return m, nil
		case "jwt":
			m, err := auth.NewJWTManager(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPassword, cfg.JWTExpiry())
			if err != nil {
				return nil, err
			}
			return m, nil
		case "tokenreview":
			sa, err := discovery.LoadServiceAccount(deps.serviceAccountDir())
			if err != nil {
				return nil, fmt.Errorf("tokenreview requires an in-cluster service account: %w", err)
			}
			client, err := sa.HTTPClient(deps.Config.Recordings.AgentTimeout())
			if err != nil {
				return nil, err
			}
			return auth.NewTokenReviewManager(sa.APIServer, sa.Token, client), nil
		default:
			return nil, fmt.Errorf("unknown auth manager %q", cfg.Manager)
		}
	}
}

package platform

import (
	"fmt"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/discovery"
)

// KubeAPIStrategy discovers targets through the Kubernetes endpoints API and
// authenticates callers with TokenReview.
type KubeAPIStrategy struct {
	deps Deps
}

func NewKubeAPIStrategy(deps Deps) *KubeAPIStrategy {
	return &KubeAPIStrategy{deps: deps}
}

func (s *KubeAPIStrategy) Name() string { return "kubeapi" }

func (s *KubeAPIStrategy) Priority() Priority { return PriorityHigh }

// Available reports whether KUBERNETES_SERVICE_HOST is set and a service
// account namespace is mounted.
func (s *KubeAPIStrategy) Available() bool {
	return discovery.InCluster(s.deps.serviceAccountDir())
}

func (s *KubeAPIStrategy) serviceAccount() (*discovery.ServiceAccount, error) {
	sa, err := discovery.LoadServiceAccount(s.deps.serviceAccountDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load service account: %w", err)
	}
	return sa, nil
}

func (s *KubeAPIStrategy) Client() (*Client, error) {
	logger := s.deps.logger()
	sa, err := s.serviceAccount()
	if err != nil {
		return nil, err
	}
	httpClient, err := sa.HTTPClient(s.deps.Config.Recordings.AgentTimeout())
	if err != nil {
		return nil, err
	}
	logger.Info("Selected KubeAPI Platform Strategy", "namespace", sa.Namespace)

	scan := discovery.KubeAPIScan(sa, s.deps.Config.Discovery.KubeAPIPortName, httpClient)
	d := discovery.NewClient(s.Name(), scan, s.deps.Config.Discovery.RefreshInterval(), s.deps.Hub, logger)
	return NewClient(d, s.deps.Hub, logger), nil
}

func (s *KubeAPIStrategy) AuthManager() (auth.Manager, error) {
	sa, err := s.serviceAccount()
	if err != nil {
		return nil, err
	}
	httpClient, err := sa.HTTPClient(s.deps.Config.Recordings.AgentTimeout())
	if err != nil {
		return nil, err
	}
	return auth.NewTokenReviewManager(sa.APIServer, sa.Token, httpClient), nil
}

package platform

import (
	"os"
	"strings"

	"github.com/jfrlite/jfrlite/internal/auth"
	"github.com/jfrlite/jfrlite/internal/discovery"
)

// KubeEnvStrategy discovers services from the environment variables
// Kubernetes injects into pods. It needs no API access.
type KubeEnvStrategy struct {
	deps Deps
}

func NewKubeEnvStrategy(deps Deps) *KubeEnvStrategy {
	return &KubeEnvStrategy{deps: deps}
}

func (s *KubeEnvStrategy) Name() string { return "kubeenv" }

func (s *KubeEnvStrategy) Priority() Priority { return PriorityMedium }

func (s *KubeEnvStrategy) environ() []string {
	if s.deps.Environ != nil {
		return s.deps.Environ()
	}
	return os.Environ()
}

// Available reports whether any KUBERNETES_* variable is present.
func (s *KubeEnvStrategy) Available() bool {
	for _, kv := range s.environ() {
		if strings.HasPrefix(kv, "KUBERNETES_") {
			return true
		}
	}
	return false
}

func (s *KubeEnvStrategy) Client() (*Client, error) {
	logger := s.deps.logger()
	port := s.deps.Config.Discovery.KubeEnvPort
	logger.Info("Selected KubeEnv Platform Strategy", "port", port)

	d := discovery.NewClient(s.Name(), discovery.KubeEnvScan(port, s.environ),
		s.deps.Config.Discovery.RefreshInterval(), s.deps.Hub, logger)
	return NewClient(d, s.deps.Hub, logger), nil
}

func (s *KubeEnvStrategy) AuthManager() (auth.Manager, error) {
	return auth.NewNoopManager(), nil
}

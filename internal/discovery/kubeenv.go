package discovery

import (
	"context"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// SourceKubeEnv marks targets found through Kubernetes service environment variables.
const SourceKubeEnv = "kubeenv"

var serviceAddrVar = regexp.MustCompile(`^([A-Z0-9_]+)_PORT_([0-9]+)_TCP_ADDR$`)

// KubeEnvScan finds services exposing port from the variables Kubernetes injects
// into every pod ("<SERVICE>_PORT_<port>_TCP_ADDR"). environ defaults to os.Environ.
func KubeEnvScan(port int, environ func() []string) ScanFunc {
	if environ == nil {
		environ = os.Environ
	}
	return func(context.Context) ([]targets.Target, error) {
		var found []targets.Target
		for _, kv := range environ() {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || value == "" {
				continue
			}
			m := serviceAddrVar.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			if p, err := strconv.Atoi(m[2]); err != nil || p != port {
				continue
			}
			hostPort := net.JoinHostPort(value, m[2])
			found = append(found, targets.Target{
				ID:       hostPort,
				Alias:    strings.ToLower(strings.ReplaceAll(m[1], "_", "-")),
				AgentURL: "http://" + hostPort,
				Source:   SourceKubeEnv,
			})
		}
		return found, nil
	}
}

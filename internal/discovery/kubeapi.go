package discovery

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jfrlite/jfrlite/internal/targets"
)

const (
	// SourceKubeAPI marks targets found through the Kubernetes endpoints API.
	SourceKubeAPI = "kubeapi"

	// ServiceAccountDir is where Kubernetes mounts the pod's service account.
	ServiceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"
)

// ServiceAccount holds the in-cluster credentials of this pod.
type ServiceAccount struct {
	APIServer string
	Namespace string
	Token     string
	CACert    []byte
}

// InCluster reports whether the process looks like it runs inside a pod.
// It only inspects the environment and the filesystem.
func InCluster(dir string) bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, "namespace"))
	return err == nil
}

// LoadServiceAccount reads the mounted service account from dir and the API
// server address from KUBERNETES_SERVICE_HOST and KUBERNETES_SERVICE_PORT.
func LoadServiceAccount(dir string) (*ServiceAccount, error) {
	host := os.Getenv("KUBERNETES_SERVICE_HOST")
	if host == "" {
		return nil, fmt.Errorf("KUBERNETES_SERVICE_HOST is not set")
	}
	port := os.Getenv("KUBERNETES_SERVICE_PORT")
	if port == "" {
		port = "443"
	}

	namespace, err := os.ReadFile(filepath.Join(dir, "namespace"))
	if err != nil {
		return nil, fmt.Errorf("failed to read service account namespace: %w", err)
	}
	token, err := os.ReadFile(filepath.Join(dir, "token"))
	if err != nil {
		return nil, fmt.Errorf("failed to read service account token: %w", err)
	}
	ca, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read service account CA: %w", err)
	}

	return &ServiceAccount{
		APIServer: "https://" + net.JoinHostPort(host, port),
		Namespace: strings.TrimSpace(string(namespace)),
		Token:     strings.TrimSpace(string(token)),
		CACert:    ca,
	}, nil
}

// HTTPClient returns a client that trusts the cluster CA.
func (sa *ServiceAccount) HTTPClient(timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(sa.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(sa.CACert) {
			return nil, fmt.Errorf("service account CA contains no certificates")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

type endpointsList struct {
	Items []endpoints `json:"items"`
}

type endpoints struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Subsets []struct {
		Addresses []struct {
			IP        string `json:"ip"`
			TargetRef *struct {
				Kind string `json:"kind"`
				Name string `json:"name"`
			} `json:"targetRef"`
		} `json:"addresses"`
		Ports []struct {
			Name     string `json:"name"`
			Port     int    `json:"port"`
			Protocol string `json:"protocol"`
		} `json:"ports"`
	} `json:"subsets"`
}

// KubeAPIScan lists the namespace's Endpoints and returns every ready address
// whose port is named portName.
func KubeAPIScan(sa *ServiceAccount, portName string, client *http.Client) ScanFunc {
	if client == nil {
		client = http.DefaultClient
	}
	endpointsURL := strings.TrimRight(sa.APIServer, "/") +
		"/api/v1/namespaces/" + url.PathEscape(sa.Namespace) + "/endpoints"

	return func(ctx context.Context) ([]targets.Target, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build endpoints request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+sa.Token)

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("endpoints request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("endpoints request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		var list endpointsList
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to decode endpoints: %w", err)
		}

		var found []targets.Target
		for _, ep := range list.Items {
			for _, subset := range ep.Subsets {
				for _, port := range subset.Ports {
					if port.Name != portName || (port.Protocol != "" && port.Protocol != "TCP") {
						continue
					}
					for _, addr := range subset.Addresses {
						hostPort := net.JoinHostPort(addr.IP, strconv.Itoa(port.Port))
						alias := ep.Metadata.Name
						if addr.TargetRef != nil && addr.TargetRef.Name != "" {
							alias = addr.TargetRef.Name
						}
						found = append(found, targets.Target{
							ID:       hostPort,
							Alias:    alias,
							AgentURL: "http://" + hostPort,
							Source:   SourceKubeAPI,
							Labels: map[string]string{
								"namespace": sa.Namespace,
								"service":   ep.Metadata.Name,
							},
						})
					}
				}
			}
		}
		return found, nil
	}
}

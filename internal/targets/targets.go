// Package targets describes discovered application targets and the per-request
// connection identity used to reach them.
package targets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Target is a discovered process or container that exposes a recording agent.
type Target struct {
	// ID is the stable identity used in API paths (host:port or an alias).
	ID       string            `json:"id"`
	Alias    string            `json:"alias,omitempty"`
	AgentURL string            `json:"agent_url"`
	Source   string            `json:"source"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Credentials are optional target-side credentials forwarded to the agent.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConnectionDescriptor identifies one target for the duration of a request.
// It is immutable once resolved.
type ConnectionDescriptor struct {
	targetID    string
	agentURL    string
	credentials *Credentials
}

// NewConnectionDescriptor builds a descriptor. creds may be nil.
func NewConnectionDescriptor(targetID, agentURL string, creds *Credentials) ConnectionDescriptor {
	var c *Credentials
	if creds != nil {
		copied := *creds
		c = &copied
	}
	return ConnectionDescriptor{targetID: targetID, agentURL: agentURL, credentials: c}
}

func (d ConnectionDescriptor) TargetID() string { return d.targetID }

func (d ConnectionDescriptor) AgentURL() string { return d.agentURL }

// Credentials returns a copy of the credentials, or nil.
func (d ConnectionDescriptor) Credentials() *Credentials {
	if d.credentials == nil {
		return nil
	}
	copied := *d.credentials
	return &copied
}

// Lister is the read side of target discovery.
type Lister interface {
	ListTargets() []Target
}

// AuthorizationHeader carries target credentials as "Basic base64(user:pass)".
const AuthorizationHeader = "X-JMX-Authorization"

var (
	ErrInvalidTargetID   = errors.New("invalid target id")
	ErrInvalidTargetAuth = errors.New("invalid target authorization header")
)

// Resolve builds a ConnectionDescriptor from a raw path parameter. A target ID
// matching a discovered target's ID or alias resolves to its agent URL; otherwise
// it must be an agent URL or host:port.
func Resolve(lister Lister, rawTargetID string, header http.Header) (ConnectionDescriptor, error) {
	targetID, err := url.PathUnescape(rawTargetID)
	if err != nil || strings.TrimSpace(targetID) == "" {
		return ConnectionDescriptor{}, fmt.Errorf("%w: %q", ErrInvalidTargetID, rawTargetID)
	}

	creds, err := parseCredentials(header.Get(AuthorizationHeader))
	if err != nil {
		return ConnectionDescriptor{}, err
	}

	if lister != nil {
		for _, t := range lister.ListTargets() {
			if t.ID == targetID || (t.Alias != "" && t.Alias == targetID) {
				return NewConnectionDescriptor(t.ID, t.AgentURL, creds), nil
			}
		}
	}

	agentURL, err := AgentURLFor(targetID)
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	return NewConnectionDescriptor(targetID, agentURL, creds), nil
}

// AgentURLFor normalizes an http(s) URL or a host:port pair into an agent base URL.
func AgentURLFor(targetID string) (string, error) {
	if strings.HasPrefix(targetID, "http://") || strings.HasPrefix(targetID, "https://") {
		u, err := url.Parse(targetID)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidTargetID, targetID)
		}
		return strings.TrimRight(u.String(), "/"), nil
	}

	host, port, err := net.SplitHostPort(targetID)
	if err != nil || host == "" || port == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetID, targetID)
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func parseCredentials(value string) (*Credentials, error) {
	if value == "" {
		return nil, nil
	}
	scheme, encoded, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return nil, ErrInvalidTargetAuth
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, ErrInvalidTargetAuth
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, ErrInvalidTargetAuth
	}
	return &Credentials{Username: user, Password: pass}, nil
}

package recordings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// ErrUnauthorized means the agent rejected the forwarded target credentials.
var ErrUnauthorized = errors.New("agent rejected credentials")

// ConnectionError means the agent could not be reached or answered with a
// server error.
type ConnectionError struct {
	AgentURL string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("agent %s unreachable: %v", e.AgentURL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// agentRecording is the agent's wire format for a recording.
type agentRecording struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	EventSpec  string    `json:"event_spec,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	SizeBytes  int64     `json:"size_bytes"`
}

func (a agentRecording) toRecording(targetID string, now time.Time) Recording {
	return Recording{
		TargetID:  targetID,
		Name:      a.Name,
		State:     a.State,
		EventSpec: a.EventSpec,
		StartTime: a.StartTime,
		Duration:  time.Duration(a.DurationMS) * time.Millisecond,
		SizeBytes: a.SizeBytes,
		UpdatedAt: now,
	}
}

// StartRequest asks the agent to begin a recording.
type StartRequest struct {
	Name       string         `json:"name"`
	Events     []EventSetting `json:"events"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

// AgentClient calls the HTTP API of a target's recording agent.
type AgentClient struct {
	client *http.Client
	now    func() time.Time
}

// NewAgentClient creates a client whose requests time out after timeout.
func NewAgentClient(timeout time.Duration) *AgentClient {
	return &AgentClient{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// NewAgentClientWith uses an existing HTTP client.
func NewAgentClientWith(client *http.Client) *AgentClient {
	return &AgentClient{client: client, now: time.Now}
}

func (c *AgentClient) do(ctx context.Context, desc targets.ConnectionDescriptor, method, path string, body io.Reader) (*http.Response, error) {
	base := strings.TrimRight(desc.AgentURL(), "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds := desc.Credentials(); creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{AgentURL: base, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ConnectionError{
			AgentURL: base,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}
	return resp, nil
}

// List returns the recordings present on the target.
func (c *AgentClient) List(ctx context.Context, desc targets.ConnectionDescriptor) ([]Recording, error) {
	resp, err := c.do(ctx, desc, http.MethodGet, "/recordings", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list recordings returned %d", resp.StatusCode)
	}

	var wire []agentRecording
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode recordings: %w", err)
	}

	now := c.now()
	out := make([]Recording, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toRecording(desc.TargetID(), now))
	}
	return out, nil
}

// Download opens the recording's event stream. The caller closes it.
func (c *AgentClient) Download(ctx context.Context, desc targets.ConnectionDescriptor, name string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, desc, http.MethodGet, "/recordings/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("download recording returned %d", resp.StatusCode)
	}
}

// Start begins a new recording on the target.
func (c *AgentClient) Start(ctx context.Context, desc targets.ConnectionDescriptor, req StartRequest) (Recording, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to marshal start request: %w", err)
	}

	resp, err := c.do(ctx, desc, http.MethodPost, "/recordings", bytes.NewReader(body))
	if err != nil {
		return Recording{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return Recording{}, fmt.Errorf("%w: %s", ErrAlreadyExists, req.Name)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Recording{}, fmt.Errorf("start recording returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var wire agentRecording
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Recording{}, fmt.Errorf("failed to decode started recording: %w", err)
	}
	return wire.toRecording(desc.TargetID(), c.now()), nil
}

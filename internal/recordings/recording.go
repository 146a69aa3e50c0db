// Package recordings tracks flight recordings on targets and talks to the
// recording agent each target runs.
package recordings

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// State is the lifecycle state of a recording as reported by the agent.
type State string

const (
	StateNew      State = "NEW"
	StateDelayed  State = "DELAYED"
	StateRunning  State = "RUNNING"
	StateStopped  State = "STOPPED"
	StateFinished State = "FINISHED"
)

// Recording describes one recording on one target.
type Recording struct {
	TargetID  string        `json:"target_id"`
	Name      string        `json:"name"`
	State     State         `json:"state"`
	EventSpec string        `json:"event_spec,omitempty"`
	StartTime time.Time     `json:"start_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	SizeBytes int64         `json:"size_bytes"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// EventSetting enables or tunes one event type, written "type:option=value".
type EventSetting struct {
	EventType string `json:"event_type"`
	Option    string `json:"option"`
	Value     string `json:"value"`
}

func (e EventSetting) String() string {
	return e.EventType + ":" + e.Option + "=" + e.Value
}

var (
	ErrNotFound      = errors.New("recording not found")
	ErrAlreadyExists = errors.New("recording already exists")
)

var (
	namePattern  = regexp.MustCompile(`^[\w-]+$`)
	eventPattern = regexp.MustCompile(`^([\w.$]+):(\w+)=([\w.]+)$`)
)

// ValidName reports whether name may be used as a recording name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ParseEvents parses a comma-separated list of event settings such as
// "jdk.CPULoad:enabled=true,jdk.GCPhasePause:threshold=10".
func ParseEvents(spec string) ([]EventSetting, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("empty events pattern")
	}
	parts := strings.Split(spec, ",")
	settings := make([]EventSetting, 0, len(parts))
	for _, part := range parts {
		m := eventPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("invalid event setting %q", part)
		}
		settings = append(settings, EventSetting{EventType: m[1], Option: m[2], Value: m[3]})
	}
	return settings, nil
}

// ValidEvents reports whether spec parses as an events pattern.
func ValidEvents(spec string) bool {
	_, err := ParseEvents(spec)
	return err == nil
}

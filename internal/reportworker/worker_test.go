package reportworker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/reports"
	"github.com/jfrlite/jfrlite/internal/targets"
)

const sampleRecording = `{
  "name": "rec1",
  "settings": {"ignored": true},
  "events": [
    {"type": "jdk.GCPhasePause", "start_time": "2026-01-01T00:00:00Z", "duration_ns": 50000000},
    {"type": "jdk.CPULoad", "start_time": "2026-01-01T00:00:01Z", "duration_ns": 0},
    {"type": "jdk.GCPhasePause", "start_time": "2026-01-01T00:00:09Z", "duration_ns": 250000000},
    {"type": "jdk.CPULoad", "start_time": "2026-01-01T00:00:05Z", "duration_ns": 0},
    {"type": "jdk.CPULoad", "start_time": "2026-01-01T00:00:06Z", "duration_ns": 0}
  ]
}`

type fakeDownloader struct {
	data string
	err  error
	got  targets.ConnectionDescriptor
}

func (f *fakeDownloader) Download(_ context.Context, desc targets.ConnectionDescriptor, _ string) (io.ReadCloser, error) {
	f.got = desc
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.data)), nil
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(strings.NewReader(sampleRecording), 0)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if s.Name != "rec1" || s.Events != 5 {
		t.Errorf("unexpected summary header: name=%q events=%d", s.Name, s.Events)
	}
	if s.Span() != 9250*time.Millisecond {
		t.Errorf("Span() = %v, want 9.25s", s.Span())
	}
	if len(s.Types) != 2 || s.Types[0].Type != "jdk.CPULoad" || s.Types[0].Count != 3 {
		t.Fatalf("unexpected type ordering: %+v", s.Types)
	}
	gc := s.Types[1]
	if gc.TotalDuration != 300*time.Millisecond || gc.MaxDuration != 250*time.Millisecond {
		t.Errorf("unexpected GC aggregate: %+v", gc)
	}
}

func TestSummarize_Malformed(t *testing.T) {
	for _, doc := range []string{`[]`, `{"events": {}}`, `{"events": [{"type": 1}]}`, `{"events": [`} {
		if _, err := Summarize(strings.NewReader(doc), 0); err == nil {
			t.Errorf("Summarize(%q) expected error", doc)
		}
	}
}

func TestEvaluate(t *testing.T) {
	s, _ := Summarize(strings.NewReader(sampleRecording), 0)
	findings := Evaluate(s)
	bySeverity := map[string]Severity{}
	for _, f := range findings {
		bySeverity[f.Rule] = f.Severity
	}
	// 300ms of pauses over 9.25s is above the 2% warning threshold.
	if bySeverity["GC Pauses"] != SeverityWarning {
		t.Errorf("GC Pauses = %s, want warning", bySeverity["GC Pauses"])
	}
	if bySeverity["Long Pauses"] != SeverityWarning {
		t.Errorf("Long Pauses = %s, want warning", bySeverity["Long Pauses"])
	}
	if bySeverity["Thread Contention"] != SeverityOK {
		t.Errorf("Thread Contention = %s, want ok", bySeverity["Thread Contention"])
	}
}

func request(extra string) string {
	return fmt.Sprintf(`{"target_id":"t1:9977","agent_url":"http://t1:9977","recording_name":"rec1","credentials":{"username":"u","password":"p"}%s}`, extra)
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name     string
		stdin    string
		agent    *fakeDownloader
		wantCode int
	}{
		{"OK", request(""), &fakeDownloader{data: sampleRecording}, reports.ExitCodeOK},
		{"Not found", request(""), &fakeDownloader{err: recordings.ErrNotFound}, reports.ExitCodeNoSuchRecording},
		{"Unreachable", request(""), &fakeDownloader{err: &recordings.ConnectionError{AgentURL: "x", Err: errors.New("refused")}}, reports.ExitCodeConnectionFailure},
		{"Unauthorized", request(""), &fakeDownloader{err: recordings.ErrUnauthorized}, reports.ExitCodeConnectionFailure},
		{"Bad recording", request(""), &fakeDownloader{data: "garbage"}, reports.ExitCodeOther},
		{"Bad request", "{", &fakeDownloader{}, reports.ExitCodeOther},
		{"Missing fields", `{"target_id":"t1"}`, &fakeDownloader{}, reports.ExitCodeOther},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := Run(context.Background(), strings.NewReader(tc.stdin), &stdout, &stderr, tc.agent)
			if code != tc.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tc.wantCode, stderr.String())
			}
			if code != reports.ExitCodeOK {
				if stdout.Len() != 0 {
					t.Errorf("failed run wrote to stdout: %q", stdout.String())
				}
				return
			}
			html := stdout.String()
			if !strings.HasPrefix(html, "<!DOCTYPE html>") || !strings.Contains(html, "jdk.GCPhasePause") {
				t.Errorf("unexpected report: %s", html)
			}
			if creds := tc.agent.got.Credentials(); creds == nil || creds.Username != "u" {
				t.Errorf("credentials not forwarded to agent: %+v", creds)
			}
		})
	}
}

func TestRender_EscapesContent(t *testing.T) {
	s := &Summary{Name: "<script>alert(1)</script>"}
	var buf bytes.Buffer
	if err := Render(&buf, "t1", s); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert") {
		t.Error("recording name was not escaped")
	}
}

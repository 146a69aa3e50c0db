// Package reportworker is the child-process side of report generation. It
// reads one request on stdin, downloads the recording from the target's agent
// and writes an HTML report to stdout.
package reportworker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/reports"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// Downloader fetches a recording's event stream.
type Downloader interface {
	Download(ctx context.Context, desc targets.ConnectionDescriptor, name string) (io.ReadCloser, error)
}

// Run handles one request and returns the process exit code. Diagnostics go
// to stderr; stdout receives only the report.
func Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, agent Downloader) int {
	var req reports.WorkerRequest
	if err := json.NewDecoder(stdin).Decode(&req); err != nil {
		fmt.Fprintf(stderr, "invalid request: %v\n", err)
		return reports.ExitCodeOther
	}
	if req.AgentURL == "" || req.RecordingName == "" {
		fmt.Fprintln(stderr, "invalid request: agent_url and recording_name are required")
		return reports.ExitCodeOther
	}

	var heapLimit uint64
	if req.MaxHeapMB > 0 {
		heapLimit = uint64(req.MaxHeapMB) << 20
		debug.SetMemoryLimit(int64(heapLimit))
	}
	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	desc := targets.NewConnectionDescriptor(req.TargetID, req.AgentURL, req.Credentials)
	body, err := agent.Download(ctx, desc, req.RecordingName)
	if err != nil {
		fmt.Fprintf(stderr, "download failed: %v\n", err)
		return downloadExitCode(err)
	}
	defer body.Close()

	summary, err := Summarize(body, heapLimit)
	if errors.Is(err, ErrHeapLimit) {
		fmt.Fprintf(stderr, "%v (limit %d MiB)\n", err, req.MaxHeapMB)
		return reports.ExitCodeOutOfMemory
	}
	if err != nil {
		fmt.Fprintf(stderr, "reading recording failed: %v\n", err)
		return reports.ExitCodeOther
	}
	if summary.Name == "" {
		summary.Name = req.RecordingName
	}

	// Render fully before writing so a failure never leaves a partial report.
	var out bytes.Buffer
	if err := Render(&out, req.TargetID, summary); err != nil {
		fmt.Fprintf(stderr, "render failed: %v\n", err)
		return reports.ExitCodeOther
	}
	if _, err := out.WriteTo(stdout); err != nil {
		fmt.Fprintf(stderr, "write failed: %v\n", err)
		return reports.ExitCodeOther
	}
	return reports.ExitCodeOK
}

func downloadExitCode(err error) int {
	var connErr *recordings.ConnectionError
	switch {
	case errors.Is(err, recordings.ErrNotFound):
		return reports.ExitCodeNoSuchRecording
	case errors.As(err, &connErr), errors.Is(err, recordings.ErrUnauthorized):
		return reports.ExitCodeConnectionFailure
	default:
		return reports.ExitCodeOther
	}
}

// DisableCoreDumps keeps a crashing worker from writing a heap-sized core file.
func DisableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0})
}

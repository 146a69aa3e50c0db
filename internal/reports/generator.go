package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// Generator produces the HTML report for one recording on one target.
type Generator interface {
	Generate(ctx context.Context, desc targets.ConnectionDescriptor, recordingName string) (string, error)
}

// outOfMemoryMarker is what the Go runtime prints before dying of heap exhaustion.
const outOfMemoryMarker = "runtime: out of memory"

// maxStderrDetail caps how much worker stderr is carried in errors and logs.
const maxStderrDetail = 2048

// SubprocessGenerator runs the report worker binary once per report. The
// worker runs in its own process group and the whole group is killed when the
// time budget runs out.
type SubprocessGenerator struct {
	binary    string
	args      []string
	timeout   time.Duration
	maxHeapMB int
	logger    *slog.Logger
}

// NewSubprocessGenerator creates a generator. args are passed to the worker
// before any request data.
func NewSubprocessGenerator(binary string, timeout time.Duration, maxHeapMB int, logger *slog.Logger, args ...string) *SubprocessGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessGenerator{
		binary:    binary,
		args:      args,
		timeout:   timeout,
		maxHeapMB: maxHeapMB,
		logger:    logger.With("component", "report_generator"),
	}
}

// Timeout returns the budget given to each worker process.
func (g *SubprocessGenerator) Timeout() time.Duration {
	return g.timeout
}

// Generate runs the worker and classifies its exit. It returns the report on
// ExitOK, ErrRecordingNotFound when the worker reports a missing recording,
// and a *GenerationError for every other status. Cancellation of ctx kills
// the worker and returns the context error.
func (g *SubprocessGenerator) Generate(ctx context.Context, desc targets.ConnectionDescriptor, recordingName string) (string, error) {
	input, err := json.Marshal(WorkerRequest{
		TargetID:      desc.TargetID(),
		AgentURL:      desc.AgentURL(),
		Credentials:   desc.Credentials(),
		RecordingName: recordingName,
		MaxHeapMB:     g.maxHeapMB,
		TimeoutMS:     int(g.timeout / time.Millisecond),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal worker request: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, g.binary, g.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Kill the worker and anything it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	g.logger.Debug("Starting report worker",
		"target_id", desc.TargetID(),
		"recording", recordingName,
	)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return "", fmt.Errorf("report generation cancelled: %w", ctx.Err())
	}

	deadlineHit := errors.Is(execCtx.Err(), context.DeadlineExceeded)
	status, notFound := classify(runErr, stderr.String(), deadlineHit)

	if status == ExitOK {
		return stdout.String(), nil
	}

	detail := tail(stderr.String(), maxStderrDetail)
	if notFound {
		return "", fmt.Errorf("%w: %s", ErrRecordingNotFound, recordingName)
	}

	g.logger.Warn("Report worker failed",
		"target_id", desc.TargetID(),
		"recording", recordingName,
		"status", status.String(),
		"elapsed_ms", elapsed.Milliseconds(),
		"error", runErr,
		"stderr", detail,
	)
	if detail == "" && runErr != nil {
		detail = runErr.Error()
	}
	return "", &GenerationError{Status: status, Detail: detail}
}

// classify decides the ExitStatus from how the worker ended. notFound is
// true when the worker reported a missing recording.
func classify(runErr error, stderr string, deadlineHit bool) (status ExitStatus, notFound bool) {
	if deadlineHit {
		return ExitTimeout, false
	}
	if runErr == nil {
		return ExitOK, false
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		// The worker could not be started at all.
		return ExitOther, false
	}

	if strings.Contains(stderr, outOfMemoryMarker) {
		return ExitOutOfMemory, false
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		// Nothing on our side sends SIGKILL before the deadline, so it came
		// from the kernel OOM killer.
		if ws.Signal() == syscall.SIGKILL {
			return ExitOutOfMemory, false
		}
		return ExitOther, false
	}

	switch exitErr.ExitCode() {
	case ExitCodeConnectionFailure:
		return ExitTargetConnectionFailure, false
	case ExitCodeNoSuchRecording:
		return ExitOther, true
	case ExitCodeOutOfMemory:
		return ExitOutOfMemory, false
	default:
		return ExitOther, false
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jfrlite/jfrlite/internal/notifications"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// ResultKind tags a Result.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultNotFound
	ResultGenerationFailed
	ResultOther
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not_found"
	case ResultGenerationFailed:
		return "generation_failed"
	default:
		return "error"
	}
}

// Result is the outcome of a report request. Report is set for ResultOK,
// Status for ResultGenerationFailed and Err for ResultOther.
type Result struct {
	Kind   ResultKind
	Report string
	Status ExitStatus
	Err    error
}

func Ok(report string) Result { return Result{Kind: ResultOK, Report: report} }

func NotFound() Result { return Result{Kind: ResultNotFound} }

func GenerationFailed(status ExitStatus) Result {
	return Result{Kind: ResultGenerationFailed, Status: status}
}

func Failed(err error) Result { return Result{Kind: ResultOther, Err: err} }

// AsError converts a non-OK result into the matching error value.
func (r Result) AsError() error {
	switch r.Kind {
	case ResultOK:
		return nil
	case ResultNotFound:
		return ErrRecordingNotFound
	case ResultGenerationFailed:
		return &GenerationError{Status: r.Status}
	default:
		return r.Err
	}
}

// inflight tracks the callers waiting on one generation.
type inflight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Service serves reports. Concurrent requests for the same target and
// recording share one generation. Results are not cached and failures are
// not retried.
type Service struct {
	generator Generator
	hub       *notifications.Hub
	logger    *slog.Logger

	flight singleflight.Group
	mu     sync.Mutex
	calls  map[string]*inflight
}

// NewService creates a report service. hub may be nil.
func NewService(generator Generator, hub *notifications.Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator: generator,
		hub:       hub,
		logger:    logger.With("component", "report_service"),
		calls:     make(map[string]*inflight),
	}
}

func flightKey(targetID, recordingName string) string {
	return targetID + "\x00" + recordingName
}

// Get returns the report for recordingName on the target. It blocks until
// the result is ready or ctx is done. When the last waiter gives up the
// generation is cancelled and its worker killed.
func (s *Service) Get(ctx context.Context, desc targets.ConnectionDescriptor, recordingName string) Result {
	key := flightKey(desc.TargetID(), recordingName)
	call := s.join(key)
	defer s.leave(key, call)

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return s.generate(call.ctx, desc, recordingName), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			reportJoins.Inc()
		}
		return res.Val.(Result)
	case <-ctx.Done():
		return Failed(fmt.Errorf("waiting for report: %w", ctx.Err()))
	}
}

func (s *Service) join(key string) *inflight {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		call = &inflight{ctx: ctx, cancel: cancel}
		s.calls[key] = call
	}
	call.waiters++
	return call
}

func (s *Service) leave(key string, call *inflight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if s.calls[key] == call {
		delete(s.calls, key)
	}
	// A cancelled generation may still be winding down; new callers start fresh.
	s.flight.Forget(key)
}

func (s *Service) generate(ctx context.Context, desc targets.ConnectionDescriptor, recordingName string) Result {
	jobID := uuid.New()
	start := time.Now()

	reportsInFlight.Inc()
	report, err := s.generator.Generate(ctx, desc, recordingName)
	reportsInFlight.Dec()

	elapsed := time.Since(start)
	reportDuration.Observe(elapsed.Seconds())

	var res Result
	var genErr *GenerationError
	switch {
	case err == nil:
		res = Ok(report)
	case errors.Is(err, ErrRecordingNotFound):
		res = NotFound()
	case errors.As(err, &genErr):
		res = GenerationFailed(genErr.Status)
	default:
		res = Failed(err)
	}

	outcome := res.Kind.String()
	if res.Kind == ResultGenerationFailed {
		outcome = res.Status.String()
	}
	reportsTotal.WithLabelValues(outcome).Inc()

	s.notify(jobID, desc.TargetID(), recordingName, elapsed, res, err)
	return res
}

func (s *Service) notify(jobID uuid.UUID, targetID, recordingName string, elapsed time.Duration, res Result, err error) {
	if s.hub == nil {
		return
	}
	now := time.Now()
	if res.Kind == ResultOK {
		s.hub.PublishReportCompleted(notifications.ReportCompletedEvent{
			JobID:         jobID,
			TargetID:      targetID,
			RecordingName: recordingName,
			Duration:      elapsed,
			Size:          len(res.Report),
			Timestamp:     now,
		})
		return
	}

	status := res.Kind.String()
	if res.Kind == ResultGenerationFailed {
		status = res.Status.String()
	}
	event := notifications.ReportFailedEvent{
		JobID:         jobID,
		TargetID:      targetID,
		RecordingName: recordingName,
		Status:        status,
		Timestamp:     now,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if !s.hub.PublishReportFailed(event) {
		s.logger.Debug("Dropped report notification", "job_id", jobID)
	}
}

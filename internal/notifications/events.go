// Package notifications provides typed event channels for target and report
// lifecycle events.
package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TargetEvent is published when discovery sees a target appear or disappear
type TargetEvent struct {
	TargetID  string
	AgentURL  string
	Source    string
	Timestamp time.Time
}

// ReportCompletedEvent is published when a report subprocess exits OK
type ReportCompletedEvent struct {
	JobID         uuid.UUID
	TargetID      string
	RecordingName string
	Duration      time.Duration
	Size          int
	Timestamp     time.Time
}

// ReportFailedEvent is published when report generation fails
type ReportFailedEvent struct {
	JobID         uuid.UUID
	TargetID      string
	RecordingName string
	Status        string // exit classification, or "not_found" / "error"
	Error         string
	Timestamp     time.Time
}

// Config configures buffer sizes for event channels
type Config struct {
	TargetBufferSize int
	ReportBufferSize int
}

// Hub provides typed channels for all notification events
type Hub struct {
	TargetDiscovered chan TargetEvent
	TargetLost       chan TargetEvent
	ReportCompleted  chan ReportCompletedEvent
	ReportFailed     chan ReportFailedEvent

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewHub creates a new Hub with configured buffer sizes
func NewHub(cfg Config) *Hub {
	return &Hub{
		TargetDiscovered: make(chan TargetEvent, cfg.TargetBufferSize),
		TargetLost:       make(chan TargetEvent, cfg.TargetBufferSize),
		ReportCompleted:  make(chan ReportCompletedEvent, cfg.ReportBufferSize),
		ReportFailed:     make(chan ReportFailedEvent, cfg.ReportBufferSize),
		done:             make(chan struct{}),
	}
}

// publish sends without blocking the caller; a full buffer drops the event.
func publish[T any](h *Hub, ch chan T, event T) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

func (h *Hub) PublishTargetDiscovered(e TargetEvent) bool {
	return publish(h, h.TargetDiscovered, e)
}

func (h *Hub) PublishTargetLost(e TargetEvent) bool {
	return publish(h, h.TargetLost, e)
}

func (h *Hub) PublishReportCompleted(e ReportCompletedEvent) bool {
	return publish(h, h.ReportCompleted, e)
}

func (h *Hub) PublishReportFailed(e ReportFailedEvent) bool {
	return publish(h, h.ReportFailed, e)
}

// Close gracefully shuts down all channels. Safe to call more than once.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		close(h.done)
		close(h.TargetDiscovered)
		close(h.TargetLost)
		close(h.ReportCompleted)
		close(h.ReportFailed)
	})
	return nil
}

// Done returns a channel that's closed when the Hub is shutting down
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// StartLogger drains every channel and logs the events until ctx ends or the hub closes.
func StartLogger(ctx context.Context, h *Hub, logger *slog.Logger) {
	go func() {
		for {
			select {
			case e, ok := <-h.TargetDiscovered:
				if !ok {
					return
				}
				logger.InfoContext(ctx, "Target discovered",
					"target_id", e.TargetID,
					"agent_url", e.AgentURL,
					"source", e.Source,
				)
			case e, ok := <-h.TargetLost:
				if !ok {
					return
				}
				logger.InfoContext(ctx, "Target lost",
					"target_id", e.TargetID,
					"source", e.Source,
				)
			case e, ok := <-h.ReportCompleted:
				if !ok {
					return
				}
				logger.InfoContext(ctx, "Report generated",
					"job_id", e.JobID.String(),
					"target_id", e.TargetID,
					"recording", e.RecordingName,
					"duration", e.Duration.String(),
					"bytes", e.Size,
				)
			case e, ok := <-h.ReportFailed:
				if !ok {
					return
				}
				logger.WarnContext(ctx, "Report generation failed",
					"job_id", e.JobID.String(),
					"target_id", e.TargetID,
					"recording", e.RecordingName,
					"status", e.Status,
					"error", e.Error,
				)
			case <-ctx.Done():
				return
			case <-h.Done():
				return
			}
		}
	}()
}

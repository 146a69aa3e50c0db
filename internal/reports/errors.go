// Package reports generates HTML analysis reports for flight recordings in an
// isolated child process.
package reports

import (
	"errors"
	"fmt"
)

// ExitStatus classifies how a report subprocess ended.
type ExitStatus int

const (
	ExitOK ExitStatus = iota
	ExitTargetConnectionFailure
	ExitOutOfMemory
	ExitTimeout
	ExitOther
)

func (s ExitStatus) String() string {
	switch s {
	case ExitOK:
		return "OK"
	case ExitTargetConnectionFailure:
		return "TARGET_CONNECTION_FAILURE"
	case ExitOutOfMemory:
		return "OUT_OF_MEMORY"
	case ExitTimeout:
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}

// ErrRecordingNotFound means the target has no recording with the requested name.
var ErrRecordingNotFound = errors.New("recording not found")

// GenerationError is returned when the subprocess ends with a status other than OK.
type GenerationError struct {
	Status ExitStatus
	Detail string
}

func (e *GenerationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("report generation failed: %s", e.Status)
	}
	return fmt.Sprintf("report generation failed: %s: %s", e.Status, e.Detail)
}

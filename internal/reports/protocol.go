package reports

import (
	"github.com/jfrlite/jfrlite/internal/targets"
)

// Exit codes used by the report worker.
const (
	ExitCodeOK                = 0
	ExitCodeOther             = 1
	ExitCodeConnectionFailure = 10
	ExitCodeNoSuchRecording   = 11
	ExitCodeOutOfMemory       = 12
)

// WorkerRequest is written as JSON to the worker's stdin. The rendered HTML
// report is the worker's entire stdout.
type WorkerRequest struct {
	TargetID      string               `json:"target_id"`
	AgentURL      string               `json:"agent_url"`
	Credentials   *targets.Credentials `json:"credentials,omitempty"`
	RecordingName string               `json:"recording_name"`
	MaxHeapMB     int                  `json:"max_heap_mb,omitempty"`
	TimeoutMS     int                  `json:"timeout_ms,omitempty"`
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jfrlite/jfrlite/internal/reports"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// ReportGetter is the report service as seen by the handler.
type ReportGetter interface {
	Get(ctx context.Context, desc targets.ConnectionDescriptor, recordingName string) reports.Result
}

// TargetReportGetHandler serves the HTML report of one recording on one target.
type TargetReportGetHandler struct {
	lister  targets.Lister
	reports ReportGetter
	timeout time.Duration
}

func NewTargetReportGetHandler(lister targets.Lister, svc ReportGetter, timeout time.Duration) *TargetReportGetHandler {
	return &TargetReportGetHandler{lister: lister, reports: svc, timeout: timeout}
}

func (h *TargetReportGetHandler) APIVersion() string { return "v1" }
func (h *TargetReportGetHandler) Method() string     { return http.MethodGet }
func (h *TargetReportGetHandler) Path() string       { return "/targets/{targetId}/reports/{recordingName}" }
func (h *TargetReportGetHandler) RequiresAuth() bool { return true }
func (h *TargetReportGetHandler) IsAsync() bool      { return false }
func (h *TargetReportGetHandler) IsOrdered() bool    { return true }

func (h *TargetReportGetHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	desc, err := resolveTarget(r, h.lister)
	if err != nil {
		return err
	}
	recordingName, err := pathParam(r, "recordingName")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res := h.reports.Get(ctx, desc, recordingName)
	switch res.Kind {
	case reports.ResultOK:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, err := io.WriteString(w, res.Report)
		return err
	case reports.ResultNotFound:
		return errNotFound
	case reports.ResultGenerationFailed:
		// An unreachable target is indistinguishable from a missing recording.
		if res.Status == reports.ExitTargetConnectionFailure {
			return errNotFound
		}
		return res.AsError()
	default:
		if errors.Is(res.Err, context.DeadlineExceeded) && r.Context().Err() == nil {
			return &HTTPError{Status: http.StatusGatewayTimeout, Code: "TIMEOUT", Message: "Report not ready in time", Err: res.Err}
		}
		return res.Err
	}
}

func resolveTarget(r *http.Request, lister targets.Lister) (targets.ConnectionDescriptor, error) {
	desc, err := targets.Resolve(lister, chi.URLParam(r, "targetId"), r.Header)
	switch {
	case errors.Is(err, targets.ErrInvalidTargetID):
		return desc, &HTTPError{Status: http.StatusBadRequest, Code: "INVALID_TARGET", Message: "Invalid target ID", Err: err}
	case errors.Is(err, targets.ErrInvalidTargetAuth):
		return desc, &HTTPError{Status: http.StatusBadRequest, Code: "INVALID_TARGET_AUTH", Message: "Invalid " + targets.AuthorizationHeader + " header", Err: err}
	case err != nil:
		return desc, err
	}
	return desc, nil
}

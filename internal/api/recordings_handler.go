package api

import (
	"net/http"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

// TargetRecordingsGetHandler lists the cached recordings of a target.
type TargetRecordingsGetHandler struct {
	lister  targets.Lister
	catalog recordings.Catalog
}

func NewTargetRecordingsGetHandler(lister targets.Lister, catalog recordings.Catalog) *TargetRecordingsGetHandler {
	return &TargetRecordingsGetHandler{lister: lister, catalog: catalog}
}

func (h *TargetRecordingsGetHandler) APIVersion() string { return "v1" }
func (h *TargetRecordingsGetHandler) Method() string     { return http.MethodGet }
func (h *TargetRecordingsGetHandler) Path() string       { return "/targets/{targetId}/recordings" }
func (h *TargetRecordingsGetHandler) RequiresAuth() bool { return true }
func (h *TargetRecordingsGetHandler) IsAsync() bool      { return false }
func (h *TargetRecordingsGetHandler) IsOrdered() bool    { return false }

func (h *TargetRecordingsGetHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	desc, err := resolveTarget(r, h.lister)
	if err != nil {
		return err
	}

	recs, err := h.catalog.List(r.Context(), desc.TargetID())
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []recordings.Recording{}
	}
	sendJSON(w, http.StatusOK, recs)
	return nil
}

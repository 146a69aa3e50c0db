package api

import (
	"net/http"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// TargetsGetHandler lists the targets known to the selected platform client.
type TargetsGetHandler struct {
	lister targets.Lister
}

func NewTargetsGetHandler(lister targets.Lister) *TargetsGetHandler {
	return &TargetsGetHandler{lister: lister}
}

func (h *TargetsGetHandler) APIVersion() string { return "v1" }
func (h *TargetsGetHandler) Method() string     { return http.MethodGet }
func (h *TargetsGetHandler) Path() string       { return "/targets" }
func (h *TargetsGetHandler) RequiresAuth() bool { return true }
func (h *TargetsGetHandler) IsAsync() bool      { return true }
func (h *TargetsGetHandler) IsOrdered() bool    { return false }

func (h *TargetsGetHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	list := h.lister.ListTargets()
	if list == nil {
		list = []targets.Target{}
	}
	sendJSON(w, http.StatusOK, list)
	return nil
}

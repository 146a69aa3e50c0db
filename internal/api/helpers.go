package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/jfrlite/jfrlite/internal/middleware"
)

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends a standardized error response
func sendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	middleware.WriteError(w, r, status, code, message, details)
}

// decodeJSON decodes request body, returning an HTTPError on failure
func decodeJSON[T any](r *http.Request) (T, error) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return input, &HTTPError{Status: http.StatusBadRequest, Code: "INVALID_BODY", Message: "Invalid JSON body"}
	}
	return input, nil
}

// pathParam returns an unescaped chi URL parameter.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", &HTTPError{Status: http.StatusBadRequest, Code: "INVALID_PARAM", Message: "Malformed " + name}
	}
	return v, nil
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

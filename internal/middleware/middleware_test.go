package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated request ID %q is not a UUID", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Error("response header does not carry the request ID")
	}

	incoming := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("incoming request ID not kept: got %q, want %q", seen, incoming)
	}

	req.Header.Set(RequestIDHeader, "not-a-uuid\nspoofed")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid\nspoofed" {
		t.Error("invalid incoming request ID was kept")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	manager := &stubManager{ok: true}
	h := RequestID(Logger(logger)(Authenticate(manager, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.SetBasicAuth("alice", "pw")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["path"] != "/brew" || entry["user"] != "alice" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

type stubManager struct {
	ok  bool
	err error
}

func (s *stubManager) Scheme() string { return "Basic" }

func (s *stubManager) Validate(_ context.Context, _ string) (bool, error) {
	return s.ok, s.err
}

func TestAuthenticate(t *testing.T) {
	testCases := []struct {
		name       string
		manager    *stubManager
		wantStatus int
		wantCode   string
	}{
		{"Accepted", &stubManager{ok: true}, http.StatusOK, ""},
		{"Rejected", &stubManager{ok: false}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"Manager error", &stubManager{err: errors.New("api server down")}, http.StatusBadGateway, "AUTH_UNAVAILABLE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := Authenticate(tc.manager, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantCode == "" {
				return
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Error.Code != tc.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tc.wantCode)
			}
			if tc.wantStatus == http.StatusUnauthorized && !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Basic ") {
				t.Errorf("missing challenge, got %q", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := RequestID(Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponse
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Error.Code != "INTERNAL_ERROR" || body.Error.RequestID == "" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://ui.example"}, []string{"GET"}, []string{"Authorization"}, 600)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Errorf("max age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin received CORS headers")
	}
}

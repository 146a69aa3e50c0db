package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RequestHandler is one API endpoint. Path is relative to /api/{APIVersion}.
//
// A handler that is not async blocks a slot of the shared worker pool while
// it runs. An ordered handler is additionally serialized with every other
// ordered request for the same resource path.
type RequestHandler interface {
	APIVersion() string
	Method() string
	Path() string
	RequiresAuth() bool
	IsAsync() bool
	IsOrdered() bool
	Handle(w http.ResponseWriter, r *http.Request) error
}

// HTTPError is returned by handlers to choose the response status.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

var errNotFound = &HTTPError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Not found"}

// Dispatcher runs RequestHandlers on a bounded worker pool.
type Dispatcher struct {
	pool   *semaphore.Weighted
	locks  *keyedLock
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher allowing workers blocking handlers at once.
func NewDispatcher(workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pool:   semaphore.NewWeighted(int64(workers)),
		locks:  newKeyedLock(),
		logger: logger,
	}
}

// Wrap adapts h to an http.Handler.
func (d *Dispatcher) Wrap(h RequestHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !h.IsAsync() {
			if err := d.pool.Acquire(ctx, 1); err != nil {
				sendError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Request abandoned while queued", nil)
				return
			}
			defer d.pool.Release(1)
		}

		if h.IsOrdered() {
			unlock, err := d.locks.lock(ctx, r.URL.Path)
			if err != nil {
				sendError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Request abandoned while queued", nil)
				return
			}
			defer unlock()
		}

		if err := h.Handle(w, r); err != nil {
			d.writeError(w, r, err)
		}
	})
}

func (d *Dispatcher) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= http.StatusInternalServerError {
			d.logger.Error("Request failed",
				"request_id", requestID(r),
				"path", r.URL.Path,
				"status", httpErr.Status,
				"error", err,
			)
		}
		code := httpErr.Code
		if code == "" {
			code = http.StatusText(httpErr.Status)
		}
		sendError(w, r, httpErr.Status, code, httpErr.Message, nil)
		return
	}

	d.logger.Error("Request failed",
		"request_id", requestID(r),
		"path", r.URL.Path,
		"error", err,
	)
	sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
}

// keyedLock is a set of per-key mutexes that can be abandoned via context.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*keyEntry)}
}

func (k *keyedLock) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, err
	}
	return func() {
		e.sem.Release(1)
		k.release(key, e)
	}, nil
}

func (k *keyedLock) release(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

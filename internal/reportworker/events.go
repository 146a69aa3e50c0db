package reportworker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"
)

// Event is one recorded event in the agent's download format.
type Event struct {
	Type       string    `json:"type"`
	StartTime  time.Time `json:"start_time"`
	DurationNS int64     `json:"duration_ns"`
	Thread     string    `json:"thread,omitempty"`
}

// TypeSummary aggregates every event of one type.
type TypeSummary struct {
	Type          string
	Count         int
	TotalDuration time.Duration
	MaxDuration   time.Duration
}

// Summary is the aggregate view of a recording.
type Summary struct {
	Name   string
	Start  time.Time
	End    time.Time
	Events int
	Types  []TypeSummary
}

// Span returns the wall time covered by the events.
func (s *Summary) Span() time.Duration {
	if s.Start.IsZero() || s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// ErrHeapLimit is returned when decoding would exceed the worker's heap budget.
var ErrHeapLimit = errors.New("heap limit exceeded while reading recording")

// heapCheckEvery is how many events are decoded between heap checks.
const heapCheckEvery = 10000

// Summarize streams a recording document of the form
// {"name": "...", "events": [ {...}, ... ]} without holding all events in memory.
// A heapLimit of zero disables the heap guard.
func Summarize(r io.Reader, heapLimit uint64) (*Summary, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	sum := &Summary{}
	byType := make(map[string]*TypeSummary)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read recording: %w", err)
		}
		key, _ := tok.(string)
		switch key {
		case "name":
			if err := dec.Decode(&sum.Name); err != nil {
				return nil, fmt.Errorf("failed to read recording name: %w", err)
			}
		case "events":
			if err := expectDelim(dec, '['); err != nil {
				return nil, err
			}
			for dec.More() {
				var e Event
				if err := dec.Decode(&e); err != nil {
					return nil, fmt.Errorf("failed to decode event %d: %w", sum.Events, err)
				}
				sum.add(byType, e)
				if heapLimit > 0 && sum.Events%heapCheckEvery == 0 && heapInUse() > heapLimit {
					return nil, ErrHeapLimit
				}
			}
			if err := expectDelim(dec, ']'); err != nil {
				return nil, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("failed to skip field %q: %w", key, err)
			}
		}
	}

	sum.Types = make([]TypeSummary, 0, len(byType))
	for _, ts := range byType {
		sum.Types = append(sum.Types, *ts)
	}
	sort.Slice(sum.Types, func(i, j int) bool {
		if sum.Types[i].Count != sum.Types[j].Count {
			return sum.Types[i].Count > sum.Types[j].Count
		}
		return sum.Types[i].Type < sum.Types[j].Type
	})
	return sum, nil
}

func (s *Summary) add(byType map[string]*TypeSummary, e Event) {
	s.Events++
	d := time.Duration(e.DurationNS)

	if !e.StartTime.IsZero() {
		if s.Start.IsZero() || e.StartTime.Before(s.Start) {
			s.Start = e.StartTime
		}
		if end := e.StartTime.Add(d); end.After(s.End) {
			s.End = end
		}
	}

	ts, ok := byType[e.Type]
	if !ok {
		ts = &TypeSummary{Type: e.Type}
		byType[e.Type] = ts
	}
	ts.Count++
	ts.TotalDuration += d
	if d > ts.MaxDuration {
		ts.MaxDuration = d
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("malformed recording: expected %q, got %v", want, tok)
	}
	return nil
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

package reportworker

import (
	"fmt"
	"time"
)

// Severity of a rule finding.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityProblem Severity = "problem"
)

// Finding is the result of evaluating one rule.
type Finding struct {
	Rule     string
	Severity Severity
	Message  string
}

type rule struct {
	name string
	eval func(*Summary) Finding
}

var rules = []rule{
	{"GC Pauses", gcPauseRule},
	{"Long Pauses", longPauseRule},
	{"Thread Contention", contentionRule},
}

// Evaluate runs every rule against the summary.
func Evaluate(s *Summary) []Finding {
	out := make([]Finding, 0, len(rules))
	for _, r := range rules {
		f := r.eval(s)
		f.Rule = r.name
		out = append(out, f)
	}
	return out
}

func findType(s *Summary, eventType string) (TypeSummary, bool) {
	for _, ts := range s.Types {
		if ts.Type == eventType {
			return ts, true
		}
	}
	return TypeSummary{}, false
}

func gcPauseRule(s *Summary) Finding {
	ts, ok := findType(s, "jdk.GCPhasePause")
	span := s.Span()
	if !ok || span <= 0 {
		return Finding{Severity: SeverityOK, Message: "No GC pauses recorded."}
	}
	ratio := float64(ts.TotalDuration) / float64(span)
	msg := fmt.Sprintf("GC pauses took %.1f%% of the recording (%d pauses).", ratio*100, ts.Count)
	switch {
	case ratio >= 0.10:
		return Finding{Severity: SeverityProblem, Message: msg}
	case ratio >= 0.02:
		return Finding{Severity: SeverityWarning, Message: msg}
	default:
		return Finding{Severity: SeverityOK, Message: msg}
	}
}

func longPauseRule(s *Summary) Finding {
	ts, ok := findType(s, "jdk.GCPhasePause")
	if !ok {
		return Finding{Severity: SeverityOK, Message: "No GC pauses recorded."}
	}
	msg := fmt.Sprintf("Longest GC pause was %s.", ts.MaxDuration.Round(time.Microsecond))
	switch {
	case ts.MaxDuration >= time.Second:
		return Finding{Severity: SeverityProblem, Message: msg}
	case ts.MaxDuration >= 200*time.Millisecond:
		return Finding{Severity: SeverityWarning, Message: msg}
	default:
		return Finding{Severity: SeverityOK, Message: msg}
	}
}

func contentionRule(s *Summary) Finding {
	ts, ok := findType(s, "jdk.JavaMonitorEnter")
	if !ok {
		return Finding{Severity: SeverityOK, Message: "No contended monitors recorded."}
	}
	msg := fmt.Sprintf("Threads waited %s on %d contended monitor enters.", ts.TotalDuration.Round(time.Millisecond), ts.Count)
	if ts.TotalDuration >= time.Second {
		return Finding{Severity: SeverityWarning, Message: msg}
	}
	return Finding{Severity: SeverityOK, Message: msg}
}

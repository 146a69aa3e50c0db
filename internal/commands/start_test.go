package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

type fakeAgent struct {
	existing []recordings.Recording
	listErr  error
	started  []recordings.StartRequest
}

func (f *fakeAgent) List(_ context.Context, _ targets.ConnectionDescriptor) ([]recordings.Recording, error) {
	return f.existing, f.listErr
}

func (f *fakeAgent) Start(_ context.Context, desc targets.ConnectionDescriptor, req recordings.StartRequest) (recordings.Recording, error) {
	f.started = append(f.started, req)
	return recordings.Recording{TargetID: desc.TargetID(), Name: req.Name, State: recordings.StateRunning}, nil
}

func newTestCommand(agent *fakeAgent, catalog recordings.Catalog) (*StartRecordingCommand, *bytes.Buffer) {
	var out bytes.Buffer
	desc := targets.NewConnectionDescriptor("app:9977", "http://app:9977", nil)
	return NewStartRecordingCommand(&out, agent, catalog, desc), &out
}

func TestStartRecordingCommand_Name(t *testing.T) {
	cmd, _ := newTestCommand(&fakeAgent{}, nil)
	if cmd.Name() != "start" {
		t.Errorf("Name() = %q, want start", cmd.Name())
	}
}

func TestStartRecordingCommand_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		want    bool
		wantOut string
	}{
		{"No args", nil, false, "Expected two arguments: recording name and event types.\n"},
		{"Too few", []string{"foo"}, false, "Expected two arguments: recording name and event types.\n"},
		{"Too many", []string{"foo", "bar", "baz"}, false, "Expected two arguments: recording name and event types.\n"},
		{"Bad name", []string{".", "foo.Event:prop=val"}, false, ". is an invalid recording name\n"},
		{"Bad events", []string{"foo", "foo.Event:=val"}, false, "foo.Event:=val is an invalid events pattern\n"},
		{"Valid", []string{"foo", "foo.Event:prop=val"}, true, ""},
		{"Valid multiple", []string{"foo", "foo.Event:prop=val,bar.Event:thing=1"}, true, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, out := newTestCommand(&fakeAgent{}, nil)
			if got := cmd.Validate(tc.args); got != tc.want {
				t.Errorf("Validate(%v) = %v, want %v", tc.args, got, tc.want)
			}
			if out.String() != tc.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tc.wantOut)
			}
		})
	}
}

func TestStartRecordingCommand_Execute(t *testing.T) {
	agent := &fakeAgent{}
	catalog := recordings.NewMemoryCatalog()
	cmd, out := newTestCommand(agent, catalog)

	if err := cmd.Execute(context.Background(), []string{"foo", "foo.Event:prop=val"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(agent.started) != 1 {
		t.Fatalf("expected one start request, got %d", len(agent.started))
	}
	req := agent.started[0]
	if req.Name != "foo" || len(req.Events) != 1 || req.Events[0].String() != "foo.Event:prop=val" {
		t.Errorf("unexpected start request: %+v", req)
	}

	rec, err := catalog.Get(context.Background(), "app:9977", "foo")
	if err != nil {
		t.Fatalf("started recording not cached: %v", err)
	}
	if rec.EventSpec != "foo.Event:prop=val" {
		t.Errorf("EventSpec = %q", rec.EventSpec)
	}
	if out.String() != "Started recording foo on app:9977\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestStartRecordingCommand_ExecuteDuplicate(t *testing.T) {
	agent := &fakeAgent{existing: []recordings.Recording{{Name: "foo"}}}
	cmd, out := newTestCommand(agent, nil)

	if err := cmd.Execute(context.Background(), []string{"foo", "foo.Event:prop=val"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(agent.started) != 0 {
		t.Error("duplicate recording was started")
	}
	if out.String() != "Recording with name \"foo\" already exists\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestStartRecordingCommand_ListFailure(t *testing.T) {
	agent := &fakeAgent{listErr: recordings.ErrUnauthorized}
	cmd, _ := newTestCommand(agent, nil)

	err := cmd.Execute(context.Background(), []string{"foo", "foo.Event:prop=val"})
	if !errors.Is(err, recordings.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

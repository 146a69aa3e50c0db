package recordings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jfrlite/jfrlite/internal/targets"
)

type targetList struct {
	mu  sync.Mutex
	all []targets.Target
}

func (l *targetList) ListTargets() []targets.Target {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]targets.Target(nil), l.all...)
}

type fakeLister struct {
	byTarget map[string][]Recording
	failing  map[string]bool
}

func (f *fakeLister) List(_ context.Context, desc targets.ConnectionDescriptor) ([]Recording, error) {
	if f.failing[desc.TargetID()] {
		return nil, &ConnectionError{AgentURL: desc.AgentURL(), Err: errors.New("refused")}
	}
	return f.byTarget[desc.TargetID()], nil
}

func TestSyncer_SyncOnce(t *testing.T) {
	discovered := &targetList{all: []targets.Target{
		{ID: "t1", AgentURL: "http://t1"},
		{ID: "t2", AgentURL: "http://t2"},
	}}
	agent := &fakeLister{
		byTarget: map[string][]Recording{
			"t1": {{Name: "rec1"}, {Name: "rec2"}},
			"t2": {{Name: "other"}},
		},
		failing: map[string]bool{},
	}
	catalog := NewMemoryCatalog()
	s := NewSyncer(discovered, agent, catalog, 0, 2, nil)
	ctx := context.Background()

	s.SyncOnce(ctx)
	if list, _ := catalog.List(ctx, "t1"); len(list) != 2 {
		t.Fatalf("t1 recordings = %+v, want 2", list)
	}

	// Unreachable targets keep their last known recordings.
	agent.failing["t2"] = true
	agent.byTarget["t1"] = []Recording{{Name: "rec2"}}
	s.SyncOnce(ctx)
	if list, _ := catalog.List(ctx, "t1"); len(list) != 1 || list[0].Name != "rec2" {
		t.Errorf("t1 recordings = %+v, want only rec2", list)
	}
	if list, _ := catalog.List(ctx, "t2"); len(list) != 1 {
		t.Errorf("t2 recordings = %+v, want the cached entry", list)
	}

	// Lost targets are dropped.
	discovered.mu.Lock()
	discovered.all = discovered.all[:1]
	discovered.mu.Unlock()
	s.SyncOnce(ctx)
	if list, _ := catalog.List(ctx, "t2"); len(list) != 0 {
		t.Errorf("t2 recordings = %+v, want none after target was lost", list)
	}
}

func TestSyncer_RunStopsOnCancel(t *testing.T) {
	s := NewSyncer(&targetList{}, &fakeLister{}, NewMemoryCatalog(), 0, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

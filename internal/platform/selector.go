package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jfrlite/jfrlite/internal/auth"
)

var ErrNoStrategy = errors.New("no available platform strategy")

// Registry holds strategies in registration order.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
}

// Strategies returns a copy of the registered strategies.
func (r *Registry) Strategies() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Select returns the available strategy with the highest priority. Ties go to
// the strategy registered first.
func Select(strategies []Strategy) (Strategy, error) {
	available := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Available() {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return nil, ErrNoStrategy
	}
	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})
	return available[0], nil
}

// Selection is the outcome of platform detection.
type Selection struct {
	Strategy    Strategy
	Client      *Client
	AuthManager auth.Manager
}

// AuthFactory builds an auth manager that replaces the strategy's choice.
// A nil manager with a nil error keeps the strategy's manager.
type AuthFactory func() (auth.Manager, error)

// Resolve selects a strategy and builds its client and auth manager.
func Resolve(strategies []Strategy, override AuthFactory) (*Selection, error) {
	s, err := Select(strategies)
	if err != nil {
		return nil, err
	}

	client, err := s.Client()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s platform client: %w", s.Name(), err)
	}

	var mgr auth.Manager
	if override != nil {
		if mgr, err = override(); err != nil {
			return nil, fmt.Errorf("failed to build configured auth manager: %w", err)
		}
	}
	if mgr == nil {
		if mgr, err = s.AuthManager(); err != nil {
			return nil, fmt.Errorf("failed to build %s auth manager: %w", s.Name(), err)
		}
	}

	return &Selection{Strategy: s, Client: client, AuthManager: mgr}, nil
}

var (
	selected   atomic.Pointer[Selection]
	selectErr  error
	selectOnce sync.Once
)

// Init runs platform detection once per process. Later calls return the
// first result regardless of their arguments.
func Init(strategies []Strategy, override AuthFactory) (*Selection, error) {
	selectOnce.Do(func() {
		var sel *Selection
		sel, selectErr = Resolve(strategies, override)
		if selectErr == nil {
			selected.Store(sel)
		}
	})
	return selected.Load(), selectErr
}

// Selected returns the result of Init, or nil if Init has not succeeded.
func Selected() *Selection {
	return selected.Load()
}

package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/repo"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
)

// StatefulAction is the addressing contract the store needs from an action:
// its stable key and its default-state constructor.
type StatefulAction interface {
	StateKey() string
	FreshState() *domain.ActionState
}

// StateStore serializes all state access per action key. Documents are
// cached in memory after the first load; every mutating operation runs
// under the action's exclusive lock and persists the whole document.
type StateStore struct {
	repo repo.StateRepo
	bus  *eventbus.Bus
	log  zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]map[string]*domain.ActionState
}

// NewStateStore creates a store over the given repository.
func NewStateStore(stateRepo repo.StateRepo, bus *eventbus.Bus, log zerolog.Logger) *StateStore {
	return &StateStore{
		repo:  stateRepo,
		bus:   bus,
		log:   log.With().Str("component", "statestore").Logger(),
		locks: make(map[string]*sync.Mutex),
		cache: make(map[string]map[string]*domain.ActionState),
	}
}

// lockFor returns the action's mutex, creating it on first use. Locks are
// never removed.
func (s *StateStore) lockFor(actionKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[actionKey]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[actionKey] = mu
	}
	return mu
}

func (s *StateStore) acquire(actionKey string) func() {
	mu := s.lockFor(actionKey)
	mu.Lock()
	s.bus.Publish(eventbus.Event{Kind: eventbus.KindLockAcquired, Action: actionKey})
	return func() {
		s.bus.Publish(eventbus.Event{Kind: eventbus.KindLockReleased, Action: actionKey})
		mu.Unlock()
	}
}

// documentLocked returns the cached document for the action, loading it
// from the repository on first miss. Caller must hold the action lock.
func (s *StateStore) documentLocked(ctx context.Context, actionKey string) (map[string]*domain.ActionState, error) {
	s.mu.Lock()
	doc, ok := s.cache[actionKey]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}

	doc, err := s.repo.LoadDocument(ctx, actionKey)
	if err != nil {
		return nil, fmt.Errorf("load state document for %q: %w", actionKey, err)
	}
	if doc == nil {
		doc = make(map[string]*domain.ActionState)
	}
	s.mu.Lock()
	s.cache[actionKey] = doc
	s.mu.Unlock()
	s.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindStateLoaded,
		Action: actionKey,
		Detail: map[string]any{"tenants": len(doc)},
	})
	return doc, nil
}

func (s *StateStore) persistLocked(ctx context.Context, actionKey, tenantID string, doc map[string]*domain.ActionState) error {
	if err := s.repo.SaveDocument(ctx, actionKey, doc); err != nil {
		return fmt.Errorf("save state document for %q: %w", actionKey, err)
	}
	s.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindStateSaved,
		Action: actionKey,
		Tenant: tenantID,
	})
	return nil
}

// GetState returns a mutable working copy of the tenant's record, or the
// action's default-constructed state if absent. It never returns nil.
func (s *StateStore) GetState(ctx context.Context, action StatefulAction, tenantID string) (*domain.ActionState, error) {
	release := s.acquire(action.StateKey())
	defer release()

	doc, err := s.documentLocked(ctx, action.StateKey())
	if err != nil {
		return nil, err
	}
	state, ok := doc[tenantID]
	if !ok {
		return action.FreshState(), nil
	}
	return state.Clone(), nil
}

// Save atomically replaces one tenant's record within the action's document
// and persists it.
func (s *StateStore) Save(ctx context.Context, action StatefulAction, tenantID string, state *domain.ActionState) error {
	release := s.acquire(action.StateKey())
	defer release()

	doc, err := s.documentLocked(ctx, action.StateKey())
	if err != nil {
		return err
	}
	doc[tenantID] = state.Clone()
	return s.persistLocked(ctx, action.StateKey(), tenantID, doc)
}

// UpdateInPlace loads the current record, applies the mutator and writes
// the result back, all under the action's exclusive lock, so a concurrent
// updater cannot interleave.
func (s *StateStore) UpdateInPlace(ctx context.Context, action StatefulAction, tenantID string, mutator func(state *domain.ActionState) error) error {
	release := s.acquire(action.StateKey())
	defer release()

	doc, err := s.documentLocked(ctx, action.StateKey())
	if err != nil {
		return err
	}
	state, ok := doc[tenantID]
	if !ok {
		state = action.FreshState()
	} else {
		state = state.Clone()
	}
	if err := mutator(state); err != nil {
		return err
	}
	doc[tenantID] = state
	return s.persistLocked(ctx, action.StateKey(), tenantID, doc)
}

// LoadAll returns a frozen snapshot of the complete record set for one
// action key, for cross-action reads. Mutating the snapshot has no effect
// on the canonical copy.
func (s *StateStore) LoadAll(ctx context.Context, actionKey string) (map[string]*domain.ActionState, error) {
	release := s.acquire(actionKey)
	defer release()

	doc, err := s.documentLocked(ctx, actionKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.ActionState, len(doc))
	for tenant, state := range doc {
		out[tenant] = state.Clone()
	}
	return out, nil
}

// Close drains the store by acquiring every known action lock, ensuring no
// write is mid-flight when it returns.
func (s *StateStore) Close() {
	s.mu.Lock()
	locks := make([]*sync.Mutex, 0, len(s.locks))
	for _, mu := range s.locks {
		locks = append(locks, mu)
	}
	s.mu.Unlock()

	for _, mu := range locks {
		mu.Lock()
	}
	for _, mu := range locks {
		mu.Unlock()
	}
	s.log.Debug().Int("actions", len(locks)).Msg("state store drained")
}

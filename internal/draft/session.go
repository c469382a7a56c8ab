package draft

import (
	"context"
	"errors"
	"sync"

	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/plans"
	"go.uber.org/zap"
)

var (
	// ErrFlushInProgress indicates a flush was requested while another one is outstanding.
	ErrFlushInProgress = errors.New("draft: flush already in progress")
	// ErrSessionNotFound indicates that no draft is open for the owner and plan.
	ErrSessionNotFound = errors.New("draft: session not found")

	noOpLogger = zap.NewNop()
)

// Loader hydrates a plan tree from storage.
type Loader interface {
	LoadPlan(ctx context.Context, ownerID, planID string) (plans.Plan, error)
}

// Bridge persists a plan's day list as a whole.
type Bridge interface {
	SavePlan(ctx context.Context, ownerID, planID string, days []plans.Day) error
}

// FlushResult reports the store state after a successful flush.
type FlushResult struct {
	Revision uint64 `json:"revision"`
	Dirty    bool   `json:"dirty"`
}

// Session guards one Store with a writer lock and coordinates flushes.
type Session struct {
	mu       sync.Mutex
	ownerID  string
	store    *Store
	flushing bool
	logger   *zap.Logger
}

func newSession(ownerID string, store *Store, logger *zap.Logger) *Session {
	return &Session{ownerID: ownerID, store: store, logger: logger}
}

func (s *Session) OwnerID() string {
	return s.ownerID
}

// Mutate runs fn with exclusive access to the store.
func (s *Session) Mutate(fn func(store *Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.store)
}

// Snapshot returns a detached copy of the store state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Dirty()
}

// Flushing reports whether a flush is outstanding.
func (s *Session) Flushing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushing
}

// Flush hands a copy of the day list to the bridge without holding the writer lock.
// On success the store is marked clean unless it was mutated while the bridge ran.
// On failure the tree and the dirty flag are left as they were.
func (s *Session) Flush(ctx context.Context, bridge Bridge) (FlushResult, error) {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return FlushResult{}, ErrFlushInProgress
	}
	s.flushing = true
	planID := s.store.PlanID()
	days := s.store.Days()
	revision := s.store.Revision()
	s.mu.Unlock()
	defer s.endFlush()

	err := bridge.SavePlan(ctx, s.ownerID, planID, days)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("draft flush failed",
			zap.String("owner_id", s.ownerID),
			zap.String("plan_id", planID),
			zap.Uint64("revision", revision),
			zap.Error(err))
		return FlushResult{Revision: s.store.Revision(), Dirty: s.store.Dirty()}, err
	}
	if s.store.Revision() == revision {
		s.store.MarkAsClean()
	}
	return FlushResult{Revision: s.store.Revision(), Dirty: s.store.Dirty()}, nil
}

// endFlush clears the in-flight flag even when the bridge panics.
func (s *Session) endFlush() {
	s.mu.Lock()
	s.flushing = false
	s.mu.Unlock()
}

// RegistryConfig describes the dependencies of a Registry.
type RegistryConfig struct {
	Loader     Loader
	IDProvider identifiers.Provider
	Logger     *zap.Logger
}

type sessionKey struct {
	ownerID string
	planID  string
}

// Registry keeps the open draft sessions keyed by owner and plan.
type Registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	loader   Loader
	ids      identifiers.Provider
	logger   *zap.Logger
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Loader == nil {
		return nil, errors.New("draft: loader is required")
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("draft: id provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Registry{
		sessions: make(map[sessionKey]*Session),
		loader:   cfg.Loader,
		ids:      cfg.IDProvider,
		logger:   logger,
	}, nil
}

// Open returns the session for the plan, hydrating a fresh store when none is open or the
// open one is clean. A dirty session is kept unless force is set. The boolean reports
// whether an existing dirty session was returned.
func (r *Registry) Open(ctx context.Context, ownerID, planID string, force bool) (*Session, bool, error) {
	key := sessionKey{ownerID: ownerID, planID: planID}
	if !force {
		if existing := r.lookup(key); existing != nil && existing.Dirty() {
			return existing, true, nil
		}
	}

	plan, err := r.loader.LoadPlan(ctx, ownerID, planID)
	if err != nil {
		return nil, false, err
	}
	store, err := NewStore(plan, r.ids)
	if err != nil {
		return nil, false, err
	}
	session := newSession(ownerID, store, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[key]; ok && !force && existing.Dirty() {
		return existing, true, nil
	}
	r.sessions[key] = session
	r.logger.Debug("draft session opened",
		zap.String("owner_id", ownerID),
		zap.String("plan_id", planID),
		zap.Bool("forced", force))
	return session, false, nil
}

// Get returns the open session for the plan.
func (r *Registry) Get(ownerID, planID string) (*Session, error) {
	if session := r.lookup(sessionKey{ownerID: ownerID, planID: planID}); session != nil {
		return session, nil
	}
	return nil, ErrSessionNotFound
}

// Close discards the session, reporting whether one was open.
func (r *Registry) Close(ownerID, planID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey{ownerID: ownerID, planID: planID}
	if _, ok := r.sessions[key]; !ok {
		return false
	}
	delete(r.sessions, key)
	return true
}

func (r *Registry) lookup(key sessionKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

package draft

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/dietops/backend/internal/plans"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubLoader struct {
	mu    sync.Mutex
	plan  plans.Plan
	err   error
	calls int
}

func (l *stubLoader) LoadPlan(ctx context.Context, ownerID, planID string) (plans.Plan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return plans.Plan{}, l.err
	}
	return l.plan, nil
}

type recordingBridge struct {
	mu      sync.Mutex
	err     error
	saved   []plans.Day
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *recordingBridge) SavePlan(ctx context.Context, ownerID, planID string, days []plans.Day) error {
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return b.err
	}
	b.saved = days
	return nil
}

func newTestRegistry(t *testing.T, loader Loader, logger *zap.Logger) *Registry {
	t.Helper()
	registry, err := NewRegistry(RegistryConfig{Loader: loader, IDProvider: &sequenceIDProvider{}, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	return registry
}

func openSession(t *testing.T, registry *Registry) *Session {
	t.Helper()
	session, _, err := registry.Open(context.Background(), "coach-1", "plan-1", false)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	return session
}

func TestFlushFailureLeavesStateUntouched(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	registry := newTestRegistry(t, &stubLoader{plan: samplePlan()}, zap.New(core))
	session := openSession(t, registry)

	if err := session.Mutate(func(store *Store) error {
		_, err := store.ReorderMeals("mon", []string{"lunch", "dinner", "breakfast"})
		return err
	}); err != nil {
		t.Fatalf("unexpected mutate error: %v", err)
	}
	before := session.Snapshot()

	bridge := &recordingBridge{err: errors.New("storage unavailable")}
	result, err := session.Flush(context.Background(), bridge)
	if err == nil {
		t.Fatalf("expected flush error")
	}
	if !result.Dirty {
		t.Fatalf("expected flush failure to report dirty")
	}
	after := session.Snapshot()
	if !after.Dirty {
		t.Fatalf("expected store to stay dirty")
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected tree to be unchanged after failed flush")
	}
	if logs.FilterMessage("draft flush failed").Len() != 1 {
		t.Fatalf("expected flush failure to be logged once")
	}
}

type panickingBridge struct{}

func (panickingBridge) SavePlan(ctx context.Context, ownerID, planID string, days []plans.Day) error {
	panic("storage driver crashed")
}

func TestFlushPanicClearsFlushingFlag(t *testing.T) {
	registry := newTestRegistry(t, &stubLoader{plan: samplePlan()}, nil)
	session := openSession(t, registry)
	if err := session.Mutate(func(store *Store) error {
		store.DeleteMeal("breakfast")
		return nil
	}); err != nil {
		t.Fatalf("unexpected mutate error: %v", err)
	}
	before := session.Snapshot()

	func() {
		defer func() {
			if recovered := recover(); recovered == nil {
				t.Fatalf("expected bridge panic to propagate")
			}
		}()
		_, _ = session.Flush(context.Background(), panickingBridge{})
	}()

	if session.Flushing() {
		t.Fatalf("expected flushing flag to be cleared after panic")
	}
	if after := session.Snapshot(); !after.Dirty || !reflect.DeepEqual(before, after) {
		t.Fatalf("expected dirty tree to survive the panic")
	}

	bridge := &recordingBridge{}
	result, err := session.Flush(context.Background(), bridge)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Dirty || bridge.calls != 1 {
		t.Fatalf("expected retry to save and mark clean, got %+v calls=%d", result, bridge.calls)
	}
}

func TestFlushSuccessMarksClean(t *testing.T) {
	registry := newTestRegistry(t, &stubLoader{plan: samplePlan()}, nil)
	session := openSession(t, registry)
	session.Mutate(func(store *Store) error {
		store.DeleteMeal("breakfast")
		return nil
	})

	bridge := &recordingBridge{}
	result, err := session.Flush(context.Background(), bridge)
	if err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if result.Dirty || session.Dirty() {
		t.Fatalf("expected store to be clean after flush")
	}
	if len(bridge.saved[0].Meals) != 2 || bridge.saved[0].Meals[0].ID != "lunch" {
		t.Fatalf("unexpected flushed days %+v", bridge.saved[0].Meals)
	}
}

func TestFlushWithoutMutationsRoundTrips(t *testing.T) {
	loader := &stubLoader{plan: samplePlan()}
	registry := newTestRegistry(t, loader, nil)
	session := openSession(t, registry)

	bridge := &recordingBridge{}
	if _, err := session.Flush(context.Background(), bridge); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if !reflect.DeepEqual(bridge.saved, samplePlan().Days) {
		t.Fatalf("expected flushed tree to equal the hydrated tree:\n%+v\n%+v", bridge.saved, samplePlan().Days)
	}
}

func TestMutationDuringFlushKeepsStoreDirty(t *testing.T) {
	registry := newTestRegistry(t, &stubLoader{plan: samplePlan()}, nil)
	session := openSession(t, registry)
	session.Mutate(func(store *Store) error {
		store.DeleteMeal("dinner")
		return nil
	})

	bridge := &recordingBridge{entered: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := session.Flush(context.Background(), bridge)
		done <- err
	}()
	<-bridge.entered

	if !session.Flushing() {
		t.Fatalf("expected session to report an in-flight flush")
	}
	if _, err := session.Flush(context.Background(), &recordingBridge{}); !errors.Is(err, ErrFlushInProgress) {
		t.Fatalf("expected ErrFlushInProgress, got %v", err)
	}
	session.Mutate(func(store *Store) error {
		store.UpdateMeal("lunch", MealPatch{Name: stringPointer("Late lunch")})
		return nil
	})
	close(bridge.release)

	if err := <-done; err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if !session.Dirty() {
		t.Fatalf("expected mutation made during the flush to keep the store dirty")
	}
	if bridge.saved[0].Meals[1].Name != "Lunch" {
		t.Fatalf("expected flushed snapshot to predate the concurrent mutation")
	}
}

func TestRegistryOpenKeepsDirtySession(t *testing.T) {
	loader := &stubLoader{plan: samplePlan()}
	registry := newTestRegistry(t, loader, nil)
	session := openSession(t, registry)

	clean, reused, err := registry.Open(context.Background(), "coach-1", "plan-1", false)
	if err != nil || reused {
		t.Fatalf("expected clean session to be replaced, got reused=%v err=%v", reused, err)
	}
	if clean == session {
		t.Fatalf("expected a fresh session for a clean draft")
	}

	clean.Mutate(func(store *Store) error {
		store.DeleteMeal("lunch")
		return nil
	})
	kept, reused, err := registry.Open(context.Background(), "coach-1", "plan-1", false)
	if err != nil || !reused || kept != clean {
		t.Fatalf("expected dirty session to be kept, got reused=%v err=%v", reused, err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected no reload for a dirty session, got %d loads", loader.calls)
	}

	forced, reused, err := registry.Open(context.Background(), "coach-1", "plan-1", true)
	if err != nil || reused || forced.Dirty() {
		t.Fatalf("expected forced open to discard the dirty draft")
	}
}

func TestRegistryGetAndClose(t *testing.T) {
	registry := newTestRegistry(t, &stubLoader{plan: samplePlan()}, nil)
	if _, err := registry.Get("coach-1", "plan-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	session := openSession(t, registry)
	found, err := registry.Get("coach-1", "plan-1")
	if err != nil || found != session {
		t.Fatalf("expected open session, got %v", err)
	}
	if _, err := registry.Get("coach-2", "plan-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected sessions to be scoped by owner")
	}
	if !registry.Close("coach-1", "plan-1") || registry.Close("coach-1", "plan-1") {
		t.Fatalf("expected close to report the session once")
	}
}

func TestRegistryOpenPropagatesLoadErrors(t *testing.T) {
	registry := newTestRegistry(t, &stubLoader{err: plans.ErrPlanNotFound}, nil)
	if _, _, err := registry.Open(context.Background(), "coach-1", "missing", false); !errors.Is(err, plans.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

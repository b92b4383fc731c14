package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/guidance/internal/runtime"
	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/session"
	"github.com/aretw0/guidance/pkg/workflows"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *runtime.Engine
	store  *memory.Store
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...runtime.EngineOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	opts = append([]runtime.EngineOption{runtime.WithClock(clock.Now)}, opts...)
	return &fixture{
		engine: runtime.NewEngine(workflows.Default(), session.NewManager(store), opts...),
		store:  store,
		clock:  clock,
	}
}

func (f *fixture) start(t *testing.T, variant domain.Variant) *domain.Instruction {
	t.Helper()
	inst, err := f.engine.Start(context.Background(), variant)
	require.NoError(t, err)
	return inst
}

func (f *fixture) say(t *testing.T, id, text string) *domain.Instruction {
	t.Helper()
	inst, err := f.engine.Continue(context.Background(), id, domain.Input{Text: text})
	require.NoError(t, err)
	return inst
}

func (f *fixture) report(t *testing.T, id string, report map[string]any) *domain.Instruction {
	t.Helper()
	inst, err := f.engine.Continue(context.Background(), id, domain.Input{Report: report})
	require.NoError(t, err)
	return inst
}

func (f *fixture) load(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	return s
}

// archiveRecorder is an in-memory ports.Archiver.
type archiveRecorder struct {
	mu       sync.Mutex
	sessions []*domain.Session
	err      error
}

func (a *archiveRecorder) Archive(_ context.Context, s *domain.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.sessions = append(a.sessions, s)
	return "rec-" + s.ID, nil
}

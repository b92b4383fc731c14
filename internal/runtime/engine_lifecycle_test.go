package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/guidance/internal/runtime"
	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/aretw0/guidance/pkg/registry"
	"github.com/aretw0/guidance/pkg/session"
	"github.com/aretw0/guidance/pkg/workflow"
	"github.com/aretw0/guidance/pkg/workflows/pizza"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_CancelSession(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID

	require.NoError(t, f.engine.Cancel(context.Background(), id))
	_, err := f.engine.Inspect(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = f.engine.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func completePizza(t *testing.T, f *fixture) string {
	t.Helper()
	id := f.start(t, pizza.Variant).SessionID
	for _, answer := range []string{"thin", "meat", "ham", "small", "yes"} {
		f.say(t, id, answer)
	}
	return id
}

func TestEngine_ArchivesTerminalSessions(t *testing.T) {
	archive := &archiveRecorder{}
	f := newFixture(t, runtime.WithArchiver(archive))
	id := completePizza(t, f)

	require.Len(t, archive.sessions, 1)
	assert.Equal(t, pizza.Complete, archive.sessions[0].State)

	snap, err := f.engine.Inspect(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, snap.Terminal)
	assert.True(t, snap.Session.Archived)
	assert.Equal(t, "rec-"+id, snap.Session.RecordID)

	// Cancelling an archived record is an idempotent no-op.
	require.NoError(t, f.engine.Cancel(context.Background(), id))
	require.NoError(t, f.engine.Cancel(context.Background(), id))
	_, err = f.engine.Inspect(context.Background(), id)
	assert.NoError(t, err)
}

func TestEngine_ArchiveFailureLeavesSessionUnchanged(t *testing.T) {
	archive := &archiveRecorder{err: errors.New("disk full")}
	f := newFixture(t, runtime.WithArchiver(archive))
	id := f.start(t, pizza.Variant).SessionID
	for _, answer := range []string{"thin", "meat", "ham", "small"} {
		f.say(t, id, answer)
	}
	before := f.load(t, id)

	_, err := f.engine.Continue(context.Background(), id, domain.Input{Text: "yes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, f.load(t, id))

	// Retrying once the archive recovers completes normally.
	archive.err = nil
	inst := f.say(t, id, "yes")
	assert.Equal(t, domain.StatusComplete, inst.Status)
}

func TestEngine_Sweep(t *testing.T) {
	f := newFixture(t)
	stale := f.start(t, pizza.Variant).SessionID
	f.clock.Advance(time.Hour)
	fresh := f.start(t, pizza.Variant).SessionID

	removed, err := f.engine.Sweep(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, removed)

	_, err = f.engine.Inspect(context.Background(), stale)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = f.engine.Inspect(context.Background(), fresh)
	assert.NoError(t, err)

	_, err = f.engine.Sweep(context.Background(), 0)
	assert.Error(t, err)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	counts := map[domain.EventType]int{}
	var diffs []*domain.SessionDiff
	record := func(_ context.Context, e *domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.Type]++
		if e.Diff != nil {
			diffs = append(diffs, e.Diff)
		}
	}
	hooks := domain.LifecycleHooks{
		OnStart:      record,
		OnTransition: record,
		OnRetry:      record,
		OnEscalation: record,
		OnTerminal:   record,
		OnCancel:     record,
		OnEvict:      record,
	}

	f := newFixture(t, runtime.WithLifecycleHooks(hooks))
	id := f.start(t, pizza.Variant).SessionID
	f.say(t, id, "???")
	for _, answer := range []string{"thin", "meat", "ham", "small", "yes"} {
		f.say(t, id, answer)
	}

	other := f.start(t, pizza.Variant).SessionID
	require.NoError(t, f.engine.Cancel(context.Background(), other))

	f.clock.Advance(time.Hour)
	_, err := f.engine.Sweep(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, counts[domain.EventSessionStarted])
	assert.Equal(t, 1, counts[domain.EventRetry])
	assert.Equal(t, 5, counts[domain.EventTransition])
	assert.Equal(t, 1, counts[domain.EventTerminal])
	assert.Equal(t, 1, counts[domain.EventCancelled])
	assert.Equal(t, 1, counts[domain.EventEvicted])

	// Every diff after the first carries exactly the audit entry of its call.
	for _, d := range diffs[1:] {
		if d.SessionID == id {
			assert.Len(t, d.Audit, 1)
		}
	}
}

func TestEngine_ConcurrentContinueAdvancesOnce(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	advanced := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := f.engine.Continue(context.Background(), id, domain.Input{Text: "thin"})
			if !assert.NoError(t, err) {
				return
			}
			if !inst.StayInState {
				mu.Lock()
				advanced++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, advanced)
	s := f.load(t, id)
	assert.Equal(t, pizza.ChooseCategory, s.State)
	assert.Len(t, s.Audit, workers+1)
}

// brokenTable declares an edge the handler does not respect.
func brokenTable() *workflow.Table {
	prompt := func(s *domain.Session) *domain.Instruction { return &domain.Instruction{} }
	return &workflow.Table{
		Variant: "broken",
		Initial: "A",
		States: map[domain.StateID]workflow.StateSpec{
			"A": {
				Kind:   workflow.Collect,
				Prompt: prompt,
				Edges:  []domain.StateID{"B"},
				Handle: func(_ context.Context, _ workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
					s.Fields["touched"] = true
					return workflow.Advance(domain.StateID(in.Text), "jump", nil), nil
				},
			},
			"B":    {Kind: workflow.Collect, Prompt: prompt, Edges: []domain.StateID{"DONE"}, Handle: func(context.Context, workflow.Env, *domain.Session, domain.Input) (workflow.Outcome, error) { return workflow.Advance("DONE", "done", nil), nil }},
			"DONE": {Kind: workflow.Terminal, Prompt: prompt},
		},
	}
}

func TestEngine_InvariantBreaches(t *testing.T) {
	reg, err := registry.NewRegistry(brokenTable())
	require.NoError(t, err)
	store := memory.NewStore()
	eng := runtime.NewEngine(reg, session.NewManager(store))
	ctx := context.Background()

	inst, err := eng.Start(ctx, "broken")
	require.NoError(t, err)
	id := inst.SessionID

	// Undeclared edge: fatal, nothing persisted.
	_, err = eng.Continue(ctx, id, domain.Input{Text: "DONE"})
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, domain.ErrInvariant)
	s, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("A"), s.State)
	assert.NotContains(t, s.Fields, "touched")
	assert.Len(t, s.Audit, 1)

	// Unknown state in the store: fatal.
	s.State = "GHOST"
	require.NoError(t, store.Save(ctx, s))
	_, err = eng.Continue(ctx, id, domain.Input{Text: "B"})
	var unknown *domain.UnknownStateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, domain.StateID("GHOST"), unknown.State)
}

func TestEngine_CustomIDGenerator(t *testing.T) {
	f := newFixture(t, runtime.WithIDGenerator(func() string { return "fixed" }))
	assert.Equal(t, "fixed", f.start(t, pizza.Variant).SessionID)

	_, err := f.engine.Start(context.Background(), pizza.Variant)
	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestEngine_SweepDuringContinueDoesNotRecreateSession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	resolver := ports.ResolverFunc(func(ctx context.Context, q ports.Query) (ports.Resolution, error) {
		close(entered)
		<-release
		return ports.Resolution{Match: ports.Matched, Values: []string{"Thin"}}, nil
	})

	var evicted []string
	hooks := domain.LifecycleHooks{
		OnEvict: func(_ context.Context, e *domain.Event) { evicted = append(evicted, e.SessionID) },
	}
	f := newFixture(t, runtime.WithResolver(resolver), runtime.WithLifecycleHooks(hooks))
	ctx := context.Background()
	id := f.start(t, pizza.Variant).SessionID

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Continue(ctx, id, domain.Input{Text: "thin"})
		done <- err
	}()

	// The call is parked inside the crust handler, holding the session lock.
	<-entered
	f.clock.Advance(time.Hour)
	removed, err := f.engine.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, removed)

	close(release)
	err = <-done
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, id, "an evicted session must stay evicted")
	assert.Equal(t, []string{id}, evicted)
}

// forgetfulTable has handlers that try to undo escalation and severity.
func forgetfulTable() *workflow.Table {
	prompt := func(s *domain.Session) *domain.Instruction { return &domain.Instruction{} }
	forget := func(s *domain.Session) {
		s.Escalated = false
		s.Severity = 0
	}
	return &workflow.Table{
		Variant: "forgetful",
		Initial: "A",
		States: map[domain.StateID]workflow.StateSpec{
			"A": {
				Kind:   workflow.Collect,
				Prompt: prompt,
				Edges:  []domain.StateID{"B"},
				Handle: func(_ context.Context, _ workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
					switch in.Text {
					case "raise":
						s.Escalate()
						s.RaiseSeverity(4)
					case "forget":
						forget(s)
					case "leave":
						forget(s)
						return workflow.Advance("B", "left", nil), nil
					}
					return workflow.Stay("noted", nil, ""), nil
				},
			},
			"B": {Kind: workflow.Terminal, Prompt: prompt},
		},
	}
}

func TestEngine_EscalationAndSeverityNeverDecrease(t *testing.T) {
	reg, err := registry.NewRegistry(forgetfulTable())
	require.NoError(t, err)
	store := memory.NewStore()
	eng := runtime.NewEngine(reg, session.NewManager(store))
	ctx := context.Background()

	inst, err := eng.Start(ctx, "forgetful")
	require.NoError(t, err)
	id := inst.SessionID

	for _, text := range []string{"raise", "forget"} {
		_, err := eng.Continue(ctx, id, domain.Input{Text: text})
		require.NoError(t, err)
	}
	s, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.Escalated)
	assert.Equal(t, 4, s.Severity)

	_, err = eng.Continue(ctx, id, domain.Input{Text: "leave"})
	require.NoError(t, err)
	s, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("B"), s.State)
	assert.True(t, s.Escalated)
	assert.Equal(t, 4, s.Severity)
}

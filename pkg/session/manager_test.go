package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/aretw0/guidance/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, id)
}

func (s *SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, sess)
}

func TestManager_WithLockSerializesReadModifyWrite(t *testing.T) {
	store := &SlowStore{Store: memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewSession("race", "triage", "VITAL_SIGNS", time.Now())))

	var wg sync.WaitGroup
	const writers = 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "race", func(ctx context.Context) error {
				s, err := store.Load(ctx, "race")
				if err != nil {
					return err
				}
				s.RaiseSeverity(1)
				return store.Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, writers, s.Severity, "no update may be lost under the session lock")
}

// recordingLocker records the TTL it was asked for.
type recordingLocker struct {
	mu   sync.Mutex
	ttls []time.Duration
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.ttls = append(l.ttls, ttl)
	l.mu.Unlock()
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLockTTL(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(),
		session.WithLocker(locker),
		session.WithLockTTL(5*time.Second),
	)

	err := manager.WithLock(context.Background(), "s", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, locker.ttls)
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
	idle  time.Duration
}

func (f *fakeSweeper) Sweep(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.idle = maxIdle
	return []string{"old"}, nil
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestJanitor_SweepsUntilCancelled(t *testing.T) {
	sweeper := &fakeSweeper{}
	janitor := session.NewJanitor(sweeper, 5*time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}
	assert.Equal(t, time.Minute, sweeper.idle)
}

func TestJanitor_DisabledReturnsImmediately(t *testing.T) {
	janitor := session.NewJanitor(&fakeSweeper{}, 0, time.Minute, nil)

	done := make(chan struct{})
	go func() {
		janitor.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled janitor should return immediately")
	}
}

package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	// 1. Create and Delete many sessions
	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Create(ctx, &domain.Session{ID: sid})
		_ = mgr.WithLock(ctx, sid, func(ctx context.Context) error {
			return mgr.Store().Delete(ctx, sid)
		})
	}

	// 2. Count locks remaining in map
	lockCount := len(mgr.locks)

	t.Logf("Sessions Created: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")
	now := time.Now().UTC().Truncate(time.Second)

	newSession := func(id string, at time.Time) *domain.Session {
		s := domain.NewSession(id, "pizza", "CHOOSE_CRUST", at)
		s.Fields["crust"] = "Thin"
		s.Fields["count"] = 42
		s.Record(domain.StepSessionStarted, at, map[string]any{"variant": "pizza"})
		return s
	}

	t.Run("Create and Load", func(t *testing.T) {
		id := prefix + "-create"
		s := newSession(id, now)

		require.NoError(t, store.Create(ctx, s), "Create should not return error")
		defer store.Delete(ctx, id)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.State, loaded.State)
		assert.Equal(t, s.Variant, loaded.Variant)
		assert.Equal(t, "Thin", loaded.Fields["crust"])
		// JSON-backed stores turn ints into float64; only existence is part of the contract.
		assert.NotNil(t, loaded.Fields["count"])
		require.Len(t, loaded.Audit, 1)
		assert.Equal(t, domain.StepSessionStarted, loaded.Audit[0].Step)
	})

	t.Run("Create Duplicate", func(t *testing.T) {
		id := prefix + "-dup"
		require.NoError(t, store.Create(ctx, newSession(id, now)))
		defer store.Delete(ctx, id)

		err := store.Create(ctx, newSession(id, now))
		assert.ErrorIs(t, err, domain.ErrSessionExists)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		id := prefix + "-save"
		s := newSession(id, now)
		require.NoError(t, store.Create(ctx, s))
		defer store.Delete(ctx, id)

		s.State = "CHOOSE_CATEGORY"
		s.Escalated = true
		s.Record("crust_selected", now, nil)
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("CHOOSE_CATEGORY"), loaded.State)
		assert.True(t, loaded.Escalated)
		assert.Len(t, loaded.Audit, 2)
	})

	t.Run("Save Does Not Recreate", func(t *testing.T) {
		id := prefix + "-gone"
		s := newSession(id, now)
		require.NoError(t, store.Create(ctx, s))
		require.NoError(t, store.Delete(ctx, id))

		err := store.Save(ctx, s)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, id)
	})

	t.Run("Loaded Copies Are Isolated", func(t *testing.T) {
		id := prefix + "-isolated"
		require.NoError(t, store.Create(ctx, newSession(id, now)))
		defer store.Delete(ctx, id)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.State = "TAMPERED"
		loaded.Fields["crust"] = "Thick"

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("CHOOSE_CRUST"), again.State)
		assert.Equal(t, "Thin", again.Fields["crust"])
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-delete"
		require.NoError(t, store.Create(ctx, newSession(id, now)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		err = store.Delete(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Second Delete should report not found")
	})

	t.Run("List", func(t *testing.T) {
		id1 := prefix + "-list-1"
		id2 := prefix + "-list-2"
		require.NoError(t, store.Create(ctx, newSession(id1, now)))
		require.NoError(t, store.Create(ctx, newSession(id2, now)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})

	t.Run("Expire", func(t *testing.T) {
		stale := prefix + "-stale"
		fresh := prefix + "-fresh"
		require.NoError(t, store.Create(ctx, newSession(stale, now.Add(-2*time.Hour))))
		require.NoError(t, store.Create(ctx, newSession(fresh, now)))
		defer store.Delete(ctx, fresh)

		removed, err := store.Expire(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Contains(t, removed, stale)
		assert.NotContains(t, removed, fresh)

		_, err = store.Load(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		_, err = store.Load(ctx, fresh)
		assert.NoError(t, err)
	})
}

package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/guidance/pkg/adapters/file"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := domain.NewSession("persisted", "pizza", "CHOOSE_SIZE", time.Now().UTC())
	s.Fields["crust"] = "Thick"
	require.NoError(t, file.New(dir).Create(ctx, s))

	loaded, err := file.New(dir).Load(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, domain.StateID("CHOOSE_SIZE"), loaded.State)
	assert.Equal(t, "Thick", loaded.Fields["crust"])
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	s := domain.NewSession("atomic", "triage", "RED_FLAG_SCREENING", time.Now().UTC())
	require.NoError(t, store.Create(ctx, s))
	s.State = "CHIEF_COMPLAINT"
	require.NoError(t, store.Save(ctx, s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atomic.json", entries[0].Name())
}

func TestFileStore_InvalidIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", `a\b`, ".."} {
		_, err := store.Load(ctx, id)
		assert.Error(t, err, id)
		assert.NotErrorIs(t, err, domain.ErrSessionNotFound, id)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "not-yet"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_ExpireSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Create(ctx, domain.NewSession("old", "pizza", "CHOOSE_CRUST", now.Add(-time.Hour))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	removed, err := store.Expire(ctx, now.Add(-time.Minute))
	assert.Equal(t, []string{"old"}, removed)
	assert.ErrorContains(t, err, "broken")
}

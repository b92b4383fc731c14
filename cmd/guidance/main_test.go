package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/pkg/adapters/file"
	"github.com/aretw0/guidance/pkg/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "guidance version "+strings.TrimSpace(guidance.Version)+"\n", out)
}

func TestDemoTriageCommand(t *testing.T) {
	out, err := run(t, "demo", "triage", "--scenario", "minor")
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: Minor Complaint")
	assert.Contains(t, out, "[COMPLETE] complete")
}

func TestDemoUnknownVariant(t *testing.T) {
	_, err := run(t, "demo", "karaoke")
	assert.ErrorContains(t, err, "unknown demo")
}

func TestSessionsArchiveWithoutArchive(t *testing.T) {
	_, err := run(t, "sessions", "archive")
	assert.ErrorContains(t, err, "no archive configured")
}

func TestSessionsSweepEmptyStore(t *testing.T) {
	out, err := run(t, "sessions", "sweep", "--max-idle", "1m")
	require.NoError(t, err)
	assert.Contains(t, out, "evicted 0 session(s)")
}

func TestBadLogLevel(t *testing.T) {
	_, err := run(t, "sessions", "ls", "--log-level", "chatty")
	assert.Error(t, err)
}

func TestSessionsWithFileStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GUIDANCE_STORE_DRIVER", "file")
	t.Setenv("GUIDANCE_STORE_PATH", dir)

	s := domain.NewSession("on-disk", "pizza", "CHOOSE_SIZE", time.Now().UTC())
	require.NoError(t, file.New(dir).Create(context.Background(), s))

	out, err := run(t, "sessions", "ls")
	require.NoError(t, err)
	assert.Equal(t, "on-disk\n", out)

	out, err = run(t, "sessions", "show", "on-disk")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "CHOOSE_SIZE"`)
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsDebouncedChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tux-copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_history: 10\n"), 0o644))

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	w.Start(ctx)

	// Two rapid writes should collapse into a single event.
	require.NoError(t, os.WriteFile(path, []byte("max_history: 20\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("max_history: 30\n"), 0o644))

	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed before delivering a change")
		assert.Equal(t, path, ev.Path)
		assert.WithinDuration(t, time.Now(), ev.Timestamp, 10*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	// The reloaded file parses to the final contents.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxHistory)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tux-copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))
	w.Start(t.Context())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("unexpected event for sibling file: %+v", ev)
		}
	case <-time.After(1 * time.Second):
	}
}

func TestWatcherChannelClosesOnCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tux-copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))

	ctx, cancel := context.WithCancel(t.Context())
	w.Start(ctx)
	cancel()

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok, "events channel should close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher()
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.Error(t, w.Watch(filepath.Join(t.TempDir(), "tux-copilot.yaml")))
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/models"
)

func writeGraphFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validGraphYAML() string {
	return `services:
  - id: checkout
    name: checkout
    type: service
  - id: payments
    name: payments
    type: service
dependencies:
  - source: checkout
    target: payments
    type: sync
`
}

func TestGraphWatcherStartLoadsInitialFile(t *testing.T) {
	path := writeGraphFile(t, validGraphYAML())

	var received *models.GraphImportFile
	var called atomic.Bool
	callback := func(f *models.GraphImportFile) error {
		received = f
		called.Store(true)
		return nil
	}

	w, err := NewGraphWatcher(GraphWatcherConfig{FilePath: path, DebounceMillis: 100}, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.True(t, called.Load())
	require.Len(t, received.Services, 2)
	require.Len(t, received.Dependencies, 1)
}

func TestGraphWatcherReloadsOnWrite(t *testing.T) {
	path := writeGraphFile(t, validGraphYAML())

	var calls atomic.Int32
	var lastServiceCount atomic.Int32
	callback := func(f *models.GraphImportFile) error {
		calls.Add(1)
		lastServiceCount.Store(int32(len(f.Services)))
		return nil
	}

	w, err := NewGraphWatcher(GraphWatcherConfig{FilePath: path, DebounceMillis: 50}, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.EqualValues(t, 1, calls.Load())

	updated := `services:
  - id: checkout
    name: checkout
    type: service
dependencies: []
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
	require.EqualValues(t, 1, lastServiceCount.Load())
}

func TestGraphWatcherRejectsEmptyFilePath(t *testing.T) {
	_, err := NewGraphWatcher(GraphWatcherConfig{}, func(*models.GraphImportFile) error { return nil })
	require.Error(t, err)
}

func TestGraphWatcherRejectsNilCallback(t *testing.T) {
	_, err := NewGraphWatcher(GraphWatcherConfig{FilePath: "graph.yaml"}, nil)
	require.Error(t, err)
}

func TestGraphWatcherKeepsPreviousGraphOnInvalidReload(t *testing.T) {
	path := writeGraphFile(t, validGraphYAML())

	var calls atomic.Int32
	callback := func(f *models.GraphImportFile) error {
		calls.Add(1)
		return nil
	}

	w, err := NewGraphWatcher(GraphWatcherConfig{FilePath: path, DebounceMillis: 50}, callback)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0600))
	time.Sleep(300 * time.Millisecond)

	require.EqualValues(t, 1, calls.Load())
}

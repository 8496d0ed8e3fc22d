package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitBatch(t *testing.T, ch <-chan *Summary, cond func(*Summary) bool) *Summary {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case s := <-ch:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for watcher batch")
			return nil
		}
	}
}

func TestWatcherReextractsAndRemoves(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ws := t.TempDir()
	pub := newRecordingPublisher()
	ex, err := New(ws, testConfig(), pub)
	require.NoError(t, err)

	batches := make(chan *Summary, 16)
	w, err := NewWatcher(ex, 20*time.Millisecond, func(s *Summary) { batches <- s })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeFile(t, ws, "Shapes.cs", shapesCS)
	waitBatch(t, batches, func(s *Summary) bool { return s.Extracted == 1 })
	assert.Equal(t, []string{"Shapes.cs"}, ex.Known())

	writeFile(t, ws, "nested/deeper/Colors.cs", colorsCS)
	waitBatch(t, batches, func(s *Summary) bool { return s.Extracted >= 1 })
	require.Eventually(t, func() bool { return len(ex.Known()) == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(ws, "Shapes.cs")))
	waitBatch(t, batches, func(s *Summary) bool { return s.Removed == 1 })
	assert.Equal(t, []string{"nested/deeper/Colors.cs"}, ex.Known())

	writeFile(t, ws, "notes.txt", "ignored")
	writeFile(t, ws, "obj/Gen.cs", shapesCS)

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Batches, 3)
	assert.Zero(t, stats.Errors)

	w.Stop()
	assert.NotContains(t, ex.Known(), "obj/Gen.cs")
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ex, err := New(t.TempDir(), testConfig(), nil)
	require.NoError(t, err)
	w, err := NewWatcher(ex, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
	w.Stop()
}

package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(&Config{Debounce: 50 * time.Millisecond, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return w
}

// run starts w and returns a channel of delivered batches.
func run(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, paths []string) error {
			batches <- paths
			return nil
		})
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return nil
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDirChangesAreDebounced(t *testing.T) {
	dir := t.TempDir()
	abs, _ := filepath.Abs(dir)

	w := newTestWatcher(t)
	if err := w.AddDir(dir, ".json"); err != nil {
		t.Fatal(err)
	}
	batches := run(t, w)

	write(t, filepath.Join(dir, "a.json"), "{}")
	write(t, filepath.Join(dir, "b.json"), "{}")
	write(t, filepath.Join(dir, "a.json"), `{"id":"a"}`)
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	got := waitBatch(t, batches)
	seen := make(map[string]bool)
	for _, p := range got {
		seen[p] = true
	}
	// Events may split into more than one batch on slow machines.
	for len(seen) < 2 {
		for _, p := range waitBatch(t, batches) {
			seen[p] = true
		}
	}

	for _, want := range []string{filepath.Join(abs, "a.json"), filepath.Join(abs, "b.json")} {
		if !seen[want] {
			t.Errorf("missing change for %s in %v", want, seen)
		}
	}
	if seen[filepath.Join(abs, "notes.txt")] {
		t.Error("notes.txt should be filtered out")
	}
}

func TestWatchSingleFile(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profiles.toml")
	write(t, profile, "active = \"a\"\n")

	w := newTestWatcher(t)
	if err := w.AddFile(profile); err != nil {
		t.Fatal(err)
	}
	batches := run(t, w)

	write(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	write(t, profile, "active = \"b\"\n")

	got := waitBatch(t, batches)
	abs, _ := filepath.Abs(profile)
	if len(got) != 1 || got[0] != abs {
		t.Errorf("batch = %v, want [%s]", got, abs)
	}
}

func TestAddDirMissing(t *testing.T) {
	w := newTestWatcher(t)
	defer w.fs.Close()
	if err := w.AddDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error watching a missing directory")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(context.Context, []string) error { return nil }) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

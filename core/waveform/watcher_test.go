package waveform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// blockingExtractor holds every Extract call open until released, so the
// test can observe how many extractions are in flight at once.
type blockingExtractor struct {
	started chan string
	release chan struct{}
}

func (b *blockingExtractor) Extract(ctx context.Context, media []byte) []float64 {
	b.started <- string(media)
	<-b.release
	return make([]float64, Bins)
}

func TestWatcherHandlesDropBurstsConcurrently(t *testing.T) {
	dir := t.TempDir()
	ex := &blockingExtractor{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}

	w, err := NewWatcher(dir, ex)
	if err != nil {
		t.Fatal(err)
	}
	w.settle = 10 * time.Millisecond
	w.Start()

	for name, payload := range map[string]string{
		"a.wav": "first clip",
		"b.wav": "second clip",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(payload), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Neither extraction has been released, so seeing both payloads start
	// means a slow file cannot stall the one dropped after it.
	seen := make(map[string]bool)
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case payload := <-ex.started:
			seen[payload] = true
		case <-deadline:
			t.Fatalf("extractions in flight for %d files, want 2", len(seen))
		}
	}

	close(ex.release)
	w.Stop()
}

func TestWatcherIgnoresNonMediaFiles(t *testing.T) {
	dir := t.TempDir()
	ex := &blockingExtractor{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
	close(ex.release)

	w, err := NewWatcher(dir, ex)
	if err != nil {
		t.Fatal(err)
	}
	w.settle = 10 * time.Millisecond
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not media"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-ex.started:
		t.Fatalf("extraction started for non-media payload %q", payload)
	case <-time.After(300 * time.Millisecond):
	}
}

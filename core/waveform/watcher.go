package waveform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipsync/cache"
	"clipsync/logger"

	"github.com/fsnotify/fsnotify"
)

var mediaExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

// amplitudeExtractor is the slice of Extractor the watcher needs.
type amplitudeExtractor interface {
	Extract(ctx context.Context, media []byte) []float64
}

// Watcher monitors a drop folder and precomputes waveform summaries into
// the cache, so clips uploaded later resolve instantly.
type Watcher struct {
	dir       string
	extractor amplitudeExtractor
	settle    time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a Watcher for the given directory.
func NewWatcher(dir string, extractor amplitudeExtractor) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		dir:       dir,
		extractor: extractor,
		settle:    500 * time.Millisecond,
		watcher:   fsWatcher,
		done:      make(chan struct{}),
	}, nil
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
	logger.Info("media drop folder watcher started", logger.String("dir", w.dir))
}

// Stop tears the watcher down and waits for in-flight work.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if !mediaExtensions[ext] {
				continue
			}
			// Extraction is slow; run it off the event loop so a burst
			// of drops cannot stall event and error handling.
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				w.precompute(path)
			}(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("drop folder watcher error", logger.ErrorField(err))

		case <-w.done:
			return
		}
	}
}

// precompute reads a dropped file and caches its waveform by content hash.
// Writers may still be flushing when the event arrives, so the read is
// delayed briefly.
func (w *Watcher) precompute(path string) {
	time.Sleep(w.settle)

	media, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read dropped media file",
			logger.String("path", path),
			logger.ErrorField(err))
		return
	}
	if len(media) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := ContentKey(media)
	if cached, _ := cache.GetWaveform(ctx, key); cached != nil {
		return
	}

	amplitudes := w.extractor.Extract(ctx, media)
	if err := cache.SetWaveform(ctx, key, amplitudes); err != nil {
		return
	}

	logger.Info("precomputed waveform for dropped media",
		logger.String("path", path),
		logger.String("contentKey", key))
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/vnykmshr/bgflow/pkg/logx"
)

// DefaultDebounce is how long Watch waits after the last change event
// before reloading, so editors that write in several steps trigger one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	log      logx.Logger

	mu       sync.Mutex
	lastHash uint64
}

// NewWatcher creates a watcher for path. A zero debounce uses DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, log logx.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, log: log.With(logx.String("path", path))}
}

// Watch calls fn with every valid new version of the file until ctx ends.
// Invalid files are logged and skipped; unchanged content is not republished.
// fn runs on a timer goroutine, one call at a time.
func (w *Watcher) Watch(ctx context.Context, fn func(*File)) error {
	if b, err := os.ReadFile(w.path); err == nil {
		w.setHash(xxhash.Sum64(b))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	dir, file := filepath.Dir(w.path), filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Debug("config watcher started")

	var (
		timerMu sync.Mutex
		timer   *time.Timer
		reloads sync.WaitGroup
		runMu   sync.Mutex
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil && timer.Stop() {
			reloads.Done()
		}
		reloads.Add(1)
		timer = time.AfterFunc(w.debounce, func() {
			defer reloads.Done()
			if ctx.Err() != nil {
				return
			}
			runMu.Lock()
			defer runMu.Unlock()
			w.reload(fn)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil && timer.Stop() {
			reloads.Done()
		}
		timerMu.Unlock()
		reloads.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watch error", logx.Err(err))
			// Overflow means events were lost.
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				schedule()
			}
		}
	}
}

func (w *Watcher) reload(fn func(*File)) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("config read failed", logx.Err(err))
		return
	}
	h := xxhash.Sum64(b)
	if h == w.getHash() {
		w.log.Debug("config unchanged; skipping reload")
		return
	}

	cfg, err := Parse(b)
	if err != nil {
		w.log.Warn("config rejected", logx.Err(err))
		return
	}
	w.setHash(h)
	w.log.Info("config reloaded")
	fn(cfg)
}

func (w *Watcher) getHash() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

func (w *Watcher) setHash(h uint64) {
	w.mu.Lock()
	w.lastHash = h
	w.mu.Unlock()
}

// Watch is NewWatcher(path, 0, log).Watch(ctx, fn).
func Watch(ctx context.Context, path string, log logx.Logger, fn func(*File)) error {
	return NewWatcher(path, 0, log).Watch(ctx, fn)
}

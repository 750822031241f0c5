package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a handler for every supported file created or written in
// a directory. Bursts of events for one file within the debounce window
// collapse into one call.
type Watcher struct {
	registry *Registry
	debounce time.Duration
	handle   func(ctx context.Context, path string)
	logger   *slog.Logger
}

// NewWatcher creates a watcher. handle runs on its own goroutine per file.
func NewWatcher(registry *Registry, debounce time.Duration, handle func(ctx context.Context, path string)) *Watcher {
	return &Watcher{
		registry: registry,
		debounce: debounce,
		handle:   handle,
		logger:   slog.Default().With("component", "watcher"),
	}
}

// Watch blocks until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, dirs ...string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logger.Info("watching directory", "dir", dir)
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.registry.Supported(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule(ctx, event.Name, &mu, pending, &wg)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// schedule starts or extends the debounce timer for path. Callers hold no
// lock.
func (w *Watcher) schedule(ctx context.Context, path string, mu *sync.Mutex, pending map[string]*time.Timer, wg *sync.WaitGroup) {
	mu.Lock()
	defer mu.Unlock()
	if t, ok := pending[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer wg.Done()
		mu.Lock()
		if pending[path] == t {
			delete(pending, path)
		}
		mu.Unlock()
		if ctx.Err() == nil {
			w.handle(ctx, path)
		}
	})
	pending[path] = t
}

package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/fsnotify/fsnotify"
)

const (
	// reviewDirPattern matches the review directories of working-tree and
	// bare repositories below a connector root.
	reviewDirPattern = "*/*/{.git/" + reviewsDir + "," + reviewsDir + "}"
	// reviewFilePattern matches review records and skips atomic-write temp files.
	reviewFilePattern = "[0-9]*.yml"
)

// ErrAlreadyWatching is returned by WatchReviews when a watch is running.
var ErrAlreadyWatching = errors.New("already watching reviews")

// ReviewEvent reports that a local review record was written.
type ReviewEvent struct {
	Parameters core.Parameters
	Review     core.ReviewRequest
}

type reviewWatcher struct {
	watcher   *fsnotify.Watcher
	events    chan<- ReviewEvent
	logger    *slog.Logger
	debouncer *debouncer
	done      chan struct{}

	mu   sync.Mutex
	dirs map[string]core.Parameters
}

// WatchReviews sends an event whenever a review record of a repository below
// the root is written, until ctx is done. Repositories connected while the
// watch runs are added as they are opened.
func (c *Connector) WatchReviews(ctx context.Context, events chan<- ReviewEvent) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &reviewWatcher{
		watcher:   watcher,
		events:    events,
		logger:    c.template.Logger,
		debouncer: newDebouncer(50 * time.Millisecond),
		done:      make(chan struct{}),
		dirs:      make(map[string]core.Parameters),
	}

	// 1. Existing repositories
	root, err := filepath.Abs(c.root)
	if err != nil {
		_ = watcher.Close()
		return err
	}
	matches, err := doublestar.Glob(os.DirFS(root), reviewDirPattern)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	for _, m := range matches {
		parts := strings.SplitN(m, "/", 3)
		params := core.Parameters{Service: "fs", Username: parts[0], Repository: parts[1]}
		if err := w.add(filepath.Join(root, filepath.FromSlash(m)), params); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	// 2. Repositories connected from now on
	c.mu.Lock()
	if c.watch != nil {
		c.mu.Unlock()
		_ = watcher.Close()
		return ErrAlreadyWatching
	}
	c.watch = w
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.watch = nil
		c.mu.Unlock()
		close(w.done)
		w.debouncer.stop()
		_ = watcher.Close()
	}()

	return w.run(ctx)
}

// Watching reports whether WatchReviews is running.
func (c *Connector) Watching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watch != nil
}

func (w *reviewWatcher) add(dir string, params core.Parameters) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.dirs[dir] = params
	if w.logger != nil {
		w.logger.Debug("watching reviews", "repository", params.Slug(), "dir", dir)
	}
	return nil
}

func (w *reviewWatcher) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if ok, _ := doublestar.Match(reviewFilePattern, filepath.Base(event.Name)); !ok {
				continue
			}
			path := event.Name
			w.debouncer.add(path, func() { w.emit(ctx, path) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			if w.logger != nil {
				w.logger.Error("fsnotify error", "error", err)
			}
		}
	}
}

func (w *reviewWatcher) emit(ctx context.Context, path string) {
	w.mu.Lock()
	params, ok := w.dirs[filepath.Dir(path)]
	w.mu.Unlock()
	if !ok {
		return
	}

	rr, err := readRecord(path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("unreadable review record", "path", path, "error", err)
		}
		return
	}
	params.Branch = rr.BaseBranch

	select {
	case w.events <- ReviewEvent{Parameters: params, Review: *rr}:
	case <-ctx.Done():
	case <-w.done:
	}
}

// debouncer coalesces bursts of events per key into one call.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// stop cancels pending calls and waits for running ones.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

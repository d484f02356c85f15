// Package watch turns changes to a repository's JSONL sources into graph
// cache updates.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/matsen/papergraph/internal/logger"
	"golang.org/x/time/rate"
)

// ChangeFunc is called once per settled burst of file changes.
type ChangeFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watched files must be quiet before a change
	// is reported.
	Debounce time.Duration

	// Rate caps change reports per second. Zero or less means no cap.
	Rate float64

	Logger *logger.Logger
}

// Watcher reports changes to a fixed set of files in one directory.
//
// The directory rather than the files is watched, so files that are replaced
// by rename, as many editors do, or created later are still seen.
type Watcher struct {
	dir      string
	names    map[string]bool
	onChange ChangeFunc
	debounce time.Duration
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New creates a watcher for the named files inside dir.
func New(dir string, names []string, onChange ChangeFunc, opts Options) *Watcher {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &Watcher{
		dir:      dir,
		names:    set,
		onChange: onChange,
		debounce: opts.Debounce,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// Run watches until ctx is cancelled. Errors returned by the change function
// are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.log.Info("watching", "dir", w.dir, "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("file event", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if err := w.limiter.Wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := w.onChange(ctx); err != nil {
				w.log.Error("handling change", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !w.names[filepath.Base(ev.Name)] {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

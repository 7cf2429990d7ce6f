// Package watcher reports source file changes under a set of roots so an
// analysis can be re-run.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	Create EventOp = iota
	Write
	Remove
	Rename
)

// String returns the string representation of EventOp.
func (op EventOp) String() string {
	switch op {
	case Create:
		return "Create"
	case Write:
		return "Write"
	case Remove:
		return "Remove"
	case Rename:
		return "Rename"
	default:
		return "Unknown"
	}
}

// Event represents a file system change event.
type Event struct {
	Path string
	Op   EventOp
	Time time.Time
}

// DefaultDebounce is the per-path quiet period before an event is emitted.
const DefaultDebounce = 100 * time.Millisecond

// WatcherConfig holds configuration for the file system watcher.
type WatcherConfig struct {
	Paths           []string
	ExcludePatterns []string
	Debounce        time.Duration                    // per-path quiet period, defaults to DefaultDebounce
	Filter          func(path string) bool           // optional, events for paths it rejects are dropped
	Logger          func(format string, args ...any) // optional logger, defaults to fmt.Fprintf(os.Stderr, ...)
}

// Watcher watches file system paths for changes and emits debounced events.
type Watcher struct {
	cfg     WatcherConfig
	matcher *GitIgnoreMatcher
	log     func(format string, args ...any)
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	closed  bool
}

// NewWatcher creates a new file system watcher with the given configuration.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	matcher := NewGitIgnoreMatcher(cfg.Paths, cfg.ExcludePatterns)
	if err := matcher.LoadPatterns(); err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	return &Watcher{
		cfg:     cfg,
		matcher: matcher,
		log:     logFn,
	}, nil
}

// Matcher returns the ignore matcher shared with the watcher.
func (w *Watcher) Matcher() *GitIgnoreMatcher {
	return w.matcher
}

// Start begins watching configured paths and returns a channel of debounced
// events. The channel is closed when ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Start(ctx context.Context) (<-chan Event, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	for _, root := range w.cfg.Paths {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	out := make(chan Event, 100)
	go w.eventLoop(ctx, fsw, out)
	return out, nil
}

// Close shuts down the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (IsSkipDir(d.Name()) || w.matcher.Match(path, true)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(out)
	}()

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	latest := make(map[string]Event)

	emit := func(evt Event) {
		select {
		case out <- evt:
		case <-ctx.Done():
		}
	}

	schedule := func(evt Event) {
		mu.Lock()
		defer mu.Unlock()

		latest[evt.Path] = evt
		if t, ok := pending[evt.Path]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		pending[evt.Path] = time.AfterFunc(w.cfg.Debounce, func() {
			defer wg.Done()
			mu.Lock()
			e, ok := latest[evt.Path]
			delete(latest, evt.Path)
			delete(pending, evt.Path)
			mu.Unlock()
			if ok {
				emit(e)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				if t.Stop() {
					wg.Done()
				}
			}
			mu.Unlock()
			return

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return
			}

			op, valid := convertOp(fsEvent.Op)
			if !valid {
				continue
			}

			isDir := false
			if op == Create {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					isDir = true
				}
			}
			if w.matcher.Match(fsEvent.Name, isDir) {
				continue
			}
			if isDir {
				// New directories are watched but produce no event themselves.
				if err := w.addRecursive(fsEvent.Name); err != nil {
					w.log("warning: cannot watch %s: %v", fsEvent.Name, err)
				}
				continue
			}
			if w.cfg.Filter != nil && !w.cfg.Filter(fsEvent.Name) {
				continue
			}

			schedule(Event{Path: fsEvent.Name, Op: op, Time: time.Now()})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log("warning: watch error: %v", err)
		}
	}
}

func convertOp(op fsnotify.Op) (EventOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Create, true
	case op.Has(fsnotify.Write):
		return Write, true
	case op.Has(fsnotify.Remove):
		return Remove, true
	case op.Has(fsnotify.Rename):
		return Rename, true
	default:
		return 0, false
	}
}

// Batch groups events that arrive within quiet of each other into one
// slice, keeping the latest event per path sorted by path. The returned
// channel closes after events closes and the final batch is delivered.
func Batch(ctx context.Context, events <-chan Event, quiet time.Duration) <-chan []Event {
	out := make(chan []Event)
	go func() {
		defer close(out)

		batch := make(map[string]Event)
		var timer *time.Timer
		var fire <-chan time.Time

		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			list := make([]Event, 0, len(batch))
			for _, e := range batch {
				list = append(list, e)
			}
			sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
			batch = make(map[string]Event)
			select {
			case out <- list:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					flush()
					return
				}
				batch[e.Path] = e
				if timer == nil {
					timer = time.NewTimer(quiet)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(quiet)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}

// Package collector reads source files from disk into analysis inputs.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/model"
	"github.com/imyousuf/megaparser/internal/watcher"
)

const (
	// MaxWorkers caps the number of concurrent file reads.
	MaxWorkers = 64
	// DefaultReadTimeout bounds the time spent reading one file.
	DefaultReadTimeout = 30 * time.Second
)

// ErrTimeout is reported for files whose read exceeded the per-file timeout.
var ErrTimeout = errors.New("read timed out")

// Config holds configuration for the Collector.
type Config struct {
	ExcludePatterns []string      // doublestar globs relative to each root
	Workers         int           // <= 1 reads sequentially; capped at MaxWorkers
	ReadTimeout     time.Duration // per file, defaults to DefaultReadTimeout
	MaxFileSize     int64         // bytes, defaults to analysis.DefaultMaxFileSize
	Verbose         bool
	Logger          func(format string, args ...any) // optional logger, defaults to fmt.Fprintf(os.Stderr, ...)
	OnProgress      func(done int64)                 // optional, called after each file read attempt
}

// Stats summarizes one collection.
type Stats struct {
	Discovered int      `json:"discovered"`
	Read       int      `json:"read"`
	Ignored    int      `json:"ignored"`
	TooLarge   int      `json:"too_large"`
	TimedOut   int      `json:"timed_out"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Skipped returns the number of discovered files that produced no input.
func (s *Stats) Skipped() int {
	return s.TooLarge + s.TimedOut + s.Failed
}

// Collector walks directory trees and reads the files that are not ignored.
type Collector struct {
	cfg      Config
	log      func(format string, args ...any)
	progress atomic.Int64

	// readFile is swapped in tests to simulate slow or failing reads.
	readFile func(ctx context.Context, path string, limit int64) ([]byte, error)
}

// New creates a Collector.
func New(cfg Config) *Collector {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = analysis.DefaultMaxFileSize
	}
	if cfg.Workers > MaxWorkers {
		cfg.Workers = MaxWorkers
	}

	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	return &Collector{cfg: cfg, log: logFn, readFile: readFileContext}
}

// Progress returns the number of files whose read has been attempted. It
// only increases.
func (c *Collector) Progress() int64 {
	return c.progress.Load()
}

// candidate is a discovered file awaiting its read.
type candidate struct {
	abs  string
	rel  string // root base name + relative path, slash separated
	name string
	size int64
}

// Collect walks every root, in order, and returns one input per readable
// file. Input order is the walk order regardless of Workers.
func (c *Collector) Collect(ctx context.Context, roots ...string) ([]model.FileInput, *Stats, error) {
	stats := &Stats{}

	var all []candidate
	for _, root := range roots {
		found, err := c.discover(ctx, root, stats)
		if err != nil {
			return nil, stats, err
		}
		all = append(all, found...)
	}
	stats.Discovered = len(all)

	results := make([]*model.FileInput, len(all))
	failures := make([]error, len(all))

	if c.cfg.Workers <= 1 {
		for i, cand := range all {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
			results[i], failures[i] = c.read(ctx, cand)
		}
	} else if err := c.readParallel(ctx, all, results, failures); err != nil {
		return nil, stats, err
	}

	inputs := make([]model.FileInput, 0, len(all))
	for i, res := range results {
		if res != nil {
			inputs = append(inputs, *res)
			continue
		}
		err := failures[i]
		switch {
		case errors.Is(err, errTooLarge):
			stats.TooLarge++
		case errors.Is(err, ErrTimeout):
			stats.TimedOut++
		default:
			stats.Failed++
		}
		c.log("warning: skipping %s: %v", all[i].rel, err)
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", all[i].rel, err))
	}
	stats.Read = len(inputs)

	if c.cfg.Verbose {
		c.log("collected %d files (%d ignored, %d skipped)", stats.Read, stats.Ignored, stats.Skipped())
	}
	return inputs, stats, nil
}

// readParallel reads candidates with at most Workers concurrent reads. It is
// only called with Workers > 1. Each task writes only its own slot.
func (c *Collector) readParallel(ctx context.Context, all []candidate, results []*model.FileInput, failures []error) error {
	sem := semaphore.NewWeighted(int64(c.cfg.Workers))
	g, gCtx := errgroup.WithContext(ctx)

	for i, cand := range all {
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			results[i], failures[i] = c.read(gCtx, cand)
			return nil
		})
	}
	return g.Wait()
}

var errTooLarge = errors.New("file too large")

func (c *Collector) read(ctx context.Context, cand candidate) (*model.FileInput, error) {
	defer func() {
		done := c.progress.Add(1)
		if c.cfg.OnProgress != nil {
			c.cfg.OnProgress(done)
		}
	}()

	if cand.size > c.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, cand.size)
	}

	readCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	data, err := c.readFile(readCtx, cand.abs, c.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		return nil, err
	}
	if int64(len(data)) > c.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, len(data))
	}

	return &model.FileInput{
		Path:    cand.rel,
		Name:    cand.name,
		Content: string(data),
		Size:    int64(len(data)),
	}, nil
}

// readFileContext reads at most limit+1 bytes of path, giving up when ctx is
// done. A read that outlives ctx is abandoned; its goroutine finishes on its
// own.
func readFileContext(ctx context.Context, path string, limit int64) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		f, err := os.Open(path)
		if err != nil {
			ch <- result{err: err}
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		ch <- result{data: data, err: err}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// discover walks root and returns the files that are not ignored, in
// lexical walk order.
func (c *Collector) discover(ctx context.Context, root string, stats *Stats) ([]candidate, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	// A single file root is collected under its own name.
	if !info.IsDir() {
		return []candidate{{abs: absRoot, rel: info.Name(), name: info.Name(), size: info.Size()}}, nil
	}

	matcher := watcher.NewGitIgnoreMatcher([]string{absRoot}, c.cfg.ExcludePatterns)
	if err := matcher.LoadPatterns(); err != nil {
		return nil, fmt.Errorf("load ignore rules for %s: %w", root, err)
	}

	base := filepath.Base(absRoot)
	var found []candidate
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			stats.Errors = append(stats.Errors, err.Error())
			return nil // skip inaccessible entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == absRoot {
			return nil
		}

		if d.IsDir() {
			if watcher.IsSkipDir(d.Name()) || matcher.Match(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher.Match(path, false) {
			stats.Ignored++
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			return nil
		}

		found = append(found, candidate{
			abs:  path,
			rel:  base + "/" + filepath.ToSlash(rel),
			name: d.Name(),
			size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/watcher"
)

// watchCacheSize is the metric cache used by watch when none is configured.
const watchCacheSize = 4096

func newWatchCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-run the analysis whenever files change",
		Long: `Analyze the given paths (or the configured paths), write the exports, then
watch the paths and re-run the analysis after every burst of changes.

Unchanged files are served from the metric cache, so a re-run only pays for
the files that changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.Output.Dir = outDir
			}
			if cfg.Output.Dir == "" {
				cfg.Output.Dir = "."
			}
			if cfg.Analysis.CacheSize == 0 {
				cfg.Analysis.CacheSize = watchCacheSize
			}

			out := cmd.OutOrStdout()
			logFn := newLogger(cmd.ErrOrStderr())
			paths := resolvePaths(cfg, args)
			p := newPipeline(cfg, logFn)

			// Set up signal handling.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Fprintln(out, "\nShutting down...")
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := analyzeOnce(ctx, out, p, paths); err != nil {
				return err
			}

			absOut, err := filepath.Abs(cfg.Output.Dir)
			if err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			w, err := watcher.NewWatcher(watcher.WatcherConfig{
				Paths:           paths,
				ExcludePatterns: excludePatterns(cfg),
				Filter:          outsideDir(absOut),
				Logger:          logFn,
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer w.Close()

			events, err := w.Start(ctx)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}

			fmt.Fprintf(out, "Watching %d paths...\n", len(paths))
			for _, path := range paths {
				fmt.Fprintf(out, "  %s\n", path)
			}

			for batch := range watcher.Batch(ctx, events, cfg.Watch.Debounce) {
				fmt.Fprintf(out, "\n%d files changed\n", len(batch))
				if verbose {
					for _, e := range batch {
						fmt.Fprintf(out, "  %s %s\n", e.Op, e.Path)
					}
				}
				if err := analyzeOnce(ctx, out, p, paths); err != nil {
					if ctx.Err() != nil {
						break
					}
					logFn("analysis failed: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")

	return cmd
}

// analyzeOnce runs p over paths and writes its exports. A batch with no
// analyzable files is reported but is not an error.
func analyzeOnce(ctx context.Context, out io.Writer, p *pipeline, paths []string) error {
	res, err := p.run(ctx, paths)
	if errors.Is(err, analysis.ErrNoFiles) {
		fmt.Fprintln(out, "No files to analyze.")
		return nil
	}
	if err != nil {
		return err
	}

	written, err := p.writeOutputs(p.cfg.Output.Dir)
	if err != nil {
		return err
	}
	printRunSummary(out, res)
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}

// outsideDir returns a watcher filter rejecting every path under dir.
func outsideDir(dir string) func(string) bool {
	prefix := dir + string(filepath.Separator)
	return func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return true
		}
		return abs != dir && !strings.HasPrefix(abs, prefix)
	}
}

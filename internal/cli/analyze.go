package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/config"
)

// analyzeOptions carries the analyze flags that override configuration.
type analyzeOptions struct {
	metrics []string
	exports []string
	debug   bool
	outDir  string
	workers int
	archive bool
	dbPath  string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyze files and write every enabled export",
		Long: `Analyze every file under the given paths (or the configured paths) and
write one document per enabled exporter to <out>/<project>.<extension>.

Files that are too large, unreadable or ignored are skipped, and a failing
metric plugin only drops that metric for the affected file. The command fails
only when no file is left to analyze.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			out := cmd.OutOrStdout()
			p := newPipeline(cfg, newLogger(cmd.ErrOrStderr()))

			res, err := p.run(cmd.Context(), resolvePaths(cfg, args))
			if err != nil {
				if errors.Is(err, analysis.ErrNoFiles) {
					printRunSummary(out, res)
				}
				return err
			}

			written, err := p.writeOutputs(cfg.Output.Dir)
			if err != nil {
				return err
			}

			printRunSummary(out, res)
			for _, path := range written {
				fmt.Fprintf(out, "Wrote %s\n", path)
			}

			if cfg.Archive.Enabled {
				s, err := openArchiveStore(cfg, opts.dbPath)
				if err != nil {
					return err
				}
				defer s.Close()

				id, err := s.Save(cmd.Context(), cfg.ProjectName(), p.orch.RawOutput())
				if err != nil {
					return fmt.Errorf("archive result: %w", err)
				}
				fmt.Fprintf(out, "Archived as %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.metrics, "metrics", nil, "metric plugins to enable (default from config)")
	cmd.Flags().StringSliceVar(&opts.exports, "exports", nil, "export plugins to enable (default from config)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "record per-plugin debug information")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent file reads (default from config)")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "store the analyzed batch in the archive database")
	cmd.Flags().StringVar(&opts.dbPath, "db-path", "", "archive database path (default: .megaparser/archive.db)")

	return cmd
}

// apply overrides cfg with every flag set on cmd.
func (o *analyzeOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("metrics") {
		cfg.Metrics = o.metrics
	}
	if flags.Changed("exports") {
		cfg.Exports = o.exports
	}
	if flags.Changed("debug") {
		cfg.Analysis.Debug = o.debug
	}
	if flags.Changed("out") {
		cfg.Output.Dir = o.outDir
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = o.workers
	}
	if flags.Changed("archive") {
		cfg.Archive.Enabled = o.archive
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
}

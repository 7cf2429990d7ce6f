package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/imyousuf/megaparser/internal/analysis"
	"github.com/imyousuf/megaparser/internal/collector"
	"github.com/imyousuf/megaparser/internal/config"
	"github.com/imyousuf/megaparser/internal/export"
)

// newLogger returns a Logger writing one line per call to w.
func newLogger(w io.Writer) func(format string, args ...any) {
	return func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// pipeline wires a collector to an orchestrator for one configuration.
type pipeline struct {
	cfg       *config.Config
	collector *collector.Collector
	orch      *analysis.Orchestrator
	log       func(format string, args ...any)
}

// pipelineResult describes one collect-and-analyze pass.
type pipelineResult struct {
	Stats  *collector.Stats
	Report *analysis.RunReport
}

func newPipeline(cfg *config.Config, log func(format string, args ...any)) *pipeline {
	p := &pipeline{
		cfg: cfg,
		log: log,
		collector: collector.New(collector.Config{
			ExcludePatterns: excludePatterns(cfg),
			Workers:         cfg.Analysis.Workers,
			ReadTimeout:     cfg.Analysis.ReadTimeout,
			MaxFileSize:     cfg.Analysis.MaxFileSize,
			Verbose:         verbose,
			Logger:          log,
		}),
		orch: analysis.New(analysis.Config{
			ProjectName: cfg.ProjectName(),
			MaxFileSize: cfg.Analysis.MaxFileSize,
			Verbose:     verbose,
			Logger:      log,
			Cache:       cfg.Analysis.CacheSize,
		}),
	}
	p.orch.SetMetricPlugins(cfg.Metrics...)
	p.orch.SetExportPlugins(cfg.Exports...)
	return p
}

// excludePatterns returns the configured excludes plus the output
// directory, so earlier exports are never analyzed.
func excludePatterns(cfg *config.Config) []string {
	excludes := slices.Clone(cfg.Watch.Exclude)
	if cfg.Output.Dir == "" || filepath.IsAbs(cfg.Output.Dir) {
		return excludes
	}
	dir := filepath.ToSlash(filepath.Clean(cfg.Output.Dir))
	if dir == "." || dir == ".." || strings.HasPrefix(dir, "../") {
		return excludes
	}
	return append(excludes, dir+"/**")
}

// run collects every file under paths and analyzes the batch.
func (p *pipeline) run(ctx context.Context, paths []string) (*pipelineResult, error) {
	inputs, stats, err := p.collector.Collect(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	report, err := p.orch.Run(inputs, p.cfg.Analysis.Debug)
	return &pipelineResult{Stats: stats, Report: report}, err
}

// writeOutputs writes every enabled export document of the last run into
// dir as <project>.<extension> and returns the written paths in exporter
// order.
func (p *pipeline) writeOutputs(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base := outputBaseName(p.cfg.ProjectName())
	var written []string
	for _, id := range p.orch.ExportPlugins() {
		out, ok := p.orch.ExportOutput(id)
		if !ok {
			continue
		}
		path := filepath.Join(dir, base+"."+out.Extension)
		if err := writeOutput(path, out); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeOutput(path string, out export.Output) error {
	if err := os.WriteFile(path, []byte(out.Content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// outputBaseName turns a project name into a file name stem.
func outputBaseName(project string) string {
	project = strings.TrimSpace(project)
	if project == "" {
		return "megaparser"
	}
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(project)
}

// resolvePaths returns args, or the configured paths when args is empty.
func resolvePaths(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	if len(cfg.Paths) > 0 {
		return cfg.Paths
	}
	return []string{"."}
}

// printRunSummary prints the outcome of one pipeline pass.
func printRunSummary(w io.Writer, res *pipelineResult) {
	if res == nil || res.Report == nil {
		return
	}
	fmt.Fprintf(w, "Analyzed:  %d files\n", res.Report.Files)
	skipped := len(res.Report.Skipped)
	if res.Stats != nil {
		skipped += res.Stats.Skipped()
	}
	fmt.Fprintf(w, "Skipped:   %d files\n", skipped)

	failedFiles := make(map[string]bool)
	for _, f := range res.Report.Failures {
		if f.Path != "" {
			failedFiles[f.Path] = true
		}
	}
	fmt.Fprintf(w, "Failed:    %d files\n", len(failedFiles))
	ids := make([]string, 0, len(res.Report.ExportErrors))
	for id := range res.Report.ExportErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "Export %s failed: %v\n", id, res.Report.ExportErrors[id])
	}
}

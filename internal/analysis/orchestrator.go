// Package analysis runs metric plugins over a batch of files and feeds the
// results to export plugins.
package analysis

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/imyousuf/megaparser/internal/export"
	"github.com/imyousuf/megaparser/internal/metrics"
	"github.com/imyousuf/megaparser/internal/model"
	"github.com/imyousuf/megaparser/internal/parser"
)

var (
	// ErrInvalidInput is returned by Run for a nil batch.
	ErrInvalidInput = errors.New("invalid input batch")
	// ErrNoFiles is returned by Run when no file survives ingestion.
	ErrNoFiles = errors.New("no files to analyze")
	// ErrUnknownExporter is returned for an export id with no registered plugin.
	ErrUnknownExporter = errors.New("unknown exporter")
	// ErrNoRawOutput is returned when a conversion is requested before any
	// run or load.
	ErrNoRawOutput = errors.New("no raw output available")
)

// Config holds configuration for the Orchestrator.
type Config struct {
	Metrics     *metrics.Registry // defaults to metrics.NewDefaultRegistry()
	Exports     *export.Registry  // defaults to export.NewDefaultRegistry(ProjectName)
	ProjectName string
	MaxFileSize int64 // bytes, defaults to DefaultMaxFileSize
	Verbose     bool
	Logger      func(format string, args ...any) // optional logger, defaults to fmt.Fprintf(os.Stderr, ...)
	Cache       int                              // metric result cache entries, 0 disables caching
}

// PluginFailure records a metric or export plugin that failed for one file
// (or, for exporters, for the whole batch).
type PluginFailure struct {
	Path   string `json:"path,omitempty"`
	Plugin string `json:"plugin"`
	Err    string `json:"error"`
}

// RunReport summarizes one Run.
type RunReport struct {
	Files        int              `json:"files"`
	Skipped      []SkippedFile    `json:"skipped,omitempty"`
	Failures     []PluginFailure  `json:"failures,omitempty"`
	ExportErrors map[string]error `json:"-"`
}

type cacheKey struct {
	plugin string
	lang   parser.Language
	debug  bool
	sum    [sha256.Size]byte
}

type cachedResult struct {
	value float64
	debug any
}

// Orchestrator computes metrics for a batch of files and produces the
// enabled export documents. Runs are sequential and deterministic; the most
// recent successful run (or load) is kept as raw output.
type Orchestrator struct {
	metricsReg  *metrics.Registry
	exportsReg  *export.Registry
	maxFileSize int64
	verbose     bool
	log         func(format string, args ...any)
	cache       *lru.Cache[cacheKey, cachedResult]

	mu             sync.Mutex
	enabledMetrics []string
	enabledExports []string
	raw            []model.FileObject
	outputs        map[string]export.Output
}

// New creates an Orchestrator with every registered plugin enabled.
func New(cfg Config) *Orchestrator {
	logFn := cfg.Logger
	if logFn == nil {
		logFn = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	mreg := cfg.Metrics
	if mreg == nil {
		mreg = metrics.NewDefaultRegistry()
	}
	ereg := cfg.Exports
	if ereg == nil {
		ereg = export.NewDefaultRegistry(cfg.ProjectName)
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	o := &Orchestrator{
		metricsReg:     mreg,
		exportsReg:     ereg,
		maxFileSize:    maxSize,
		verbose:        cfg.Verbose,
		log:            logFn,
		enabledMetrics: mreg.IDs(),
		enabledExports: ereg.IDs(),
		outputs:        make(map[string]export.Output),
	}
	if cfg.Cache > 0 {
		// lru.New only fails for a non-positive size.
		o.cache, _ = lru.New[cacheKey, cachedResult](cfg.Cache)
	}
	return o
}

// SetMetricPlugins replaces the enabled metric plugins. Unknown ids are
// ignored.
func (o *Orchestrator) SetMetricPlugins(ids ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabledMetrics = o.known(ids, func(id string) bool {
		_, ok := o.metricsReg.Get(id)
		return ok
	}, "metric")
}

// SetExportPlugins replaces the enabled export plugins. Unknown ids are
// ignored.
func (o *Orchestrator) SetExportPlugins(ids ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabledExports = o.known(ids, func(id string) bool {
		_, ok := o.exportsReg.Get(id)
		return ok
	}, "export")
}

// MetricPlugins returns the enabled metric plugin ids.
func (o *Orchestrator) MetricPlugins() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.enabledMetrics)
}

// ExportPlugins returns the enabled export plugin ids.
func (o *Orchestrator) ExportPlugins() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.enabledExports)
}

func (o *Orchestrator) known(ids []string, exists func(string) bool, kind string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !exists(id) {
			if o.verbose {
				o.log("ignoring unknown %s plugin %q", kind, id)
			}
			continue
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Run ingests inputs, computes every enabled metric for every file in input
// order and produces every enabled export. A failing metric plugin only
// leaves that file's metric absent; a failing exporter only loses its own
// output. The raw output and export outputs of a previous run are replaced
// only when Run succeeds.
func (o *Orchestrator) Run(inputs []model.FileInput, debug bool) (*RunReport, error) {
	if inputs == nil {
		return nil, ErrInvalidInput
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	files, skipped := ingest(inputs, o.maxFileSize, o.log)
	report := &RunReport{
		Files:        len(files),
		Skipped:      skipped,
		ExportErrors: make(map[string]error),
	}
	if len(files) == 0 {
		return report, ErrNoFiles
	}

	plugins := make([]metrics.Plugin, 0, len(o.enabledMetrics))
	for _, id := range o.enabledMetrics {
		if p, ok := o.metricsReg.Get(id); ok {
			plugins = append(plugins, p)
		}
	}

	for i := range files {
		f := &files[i]
		for _, p := range plugins {
			if !metrics.Supports(p, f.Language) {
				continue
			}
			value, info, err := o.calculate(p, f, debug)
			if err != nil {
				o.log("warning: %s failed for %s: %v", p.Name(), f.Path, err)
				report.Failures = append(report.Failures, PluginFailure{Path: f.Path, Plugin: p.Name(), Err: err.Error()})
				continue
			}
			f.Metrics[p.Name()] = value
			if debug && info != nil {
				if f.DebugInfo == nil {
					f.DebugInfo = make(map[string]any)
				}
				f.DebugInfo[p.Name()] = info
			}
		}
		if o.verbose {
			o.log("analyzed %s (%s)", f.Path, f.Language)
		}
	}

	outputs := make(map[string]export.Output, len(o.enabledExports))
	for _, id := range o.enabledExports {
		p, ok := o.exportsReg.Get(id)
		if !ok {
			continue
		}
		out, err := runExport(p, files)
		if err != nil {
			o.log("warning: exporter %s failed: %v", id, err)
			report.ExportErrors[id] = err
			report.Failures = append(report.Failures, PluginFailure{Plugin: id, Err: err.Error()})
			continue
		}
		outputs[id] = out
	}

	o.raw = files
	o.outputs = outputs
	return report, nil
}

// calculate runs one metric plugin for one file, consulting the result cache
// when enabled. A panic inside the plugin is returned as an error.
func (o *Orchestrator) calculate(p metrics.Plugin, f *model.FileObject, debug bool) (value float64, info any, err error) {
	var key cacheKey
	if o.cache != nil {
		key = cacheKey{plugin: p.Name(), lang: f.Language, debug: debug, sum: sha256.Sum256([]byte(f.Content))}
		if r, ok := o.cache.Get(key); ok {
			return r.value, r.debug, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			value, info, err = 0, nil, fmt.Errorf("plugin panicked: %v", r)
		}
	}()

	value, err = p.Calculate(f.Content, f.Language, debug)
	if err != nil {
		return 0, nil, err
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, nil, fmt.Errorf("invalid metric value %v", value)
	}
	if debug {
		info = p.DebugInfo()
	}

	if o.cache != nil {
		o.cache.Add(key, cachedResult{value: value, debug: info})
	}
	return value, info, nil
}

func runExport(p export.Plugin, files []model.FileObject) (out export.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exporter panicked: %v", r)
		}
	}()

	content, err := p.Export(files)
	if err != nil {
		return export.Output{}, err
	}
	return export.Output{Content: content, Extension: p.Extension()}, nil
}

// RawOutput returns the analyzed files of the last successful run or load.
func (o *Orchestrator) RawOutput() []model.FileObject {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.raw)
}

// ExportOutput returns the document produced for id, if any.
func (o *Orchestrator) ExportOutput(id string) (export.Output, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outputs[id]
	return out, ok
}

// AllExportOutputs returns a copy of every produced export document.
func (o *Orchestrator) AllExportOutputs() map[string]export.Output {
	o.mu.Lock()
	defer o.mu.Unlock()
	outputs := make(map[string]export.Output, len(o.outputs))
	for id, out := range o.outputs {
		outputs[id] = out
	}
	return outputs
}

// LoadRawOutput replaces the raw output with an archived SimpleJson
// document read from r. Export outputs of earlier runs are discarded. On a
// malformed document the current state is left untouched.
func (o *Orchestrator) LoadRawOutput(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read raw output: %w", err)
	}
	files, err := export.DecodeSimpleJSON(data)
	if err != nil {
		return fmt.Errorf("load raw output: %w", err)
	}
	o.SetRawOutput(files)
	return nil
}

// SetRawOutput replaces the raw output with files, as if they had been
// produced by a run. Files without a language are classified by name.
func (o *Orchestrator) SetRawOutput(files []model.FileObject) {
	files = slices.Clone(files)
	for i := range files {
		files[i].Path = NormalizePath(files[i].Path)
		if files[i].Language == "" {
			files[i].Language = parser.DetectLanguage(files[i].Name)
		}
		if files[i].Metrics == nil {
			files[i].Metrics = make(map[string]float64)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.raw = files
	o.outputs = make(map[string]export.Output)
}

// ConvertToFormat exports the current raw output through the registered
// exporter id, whether or not it is enabled, and records the result.
func (o *Orchestrator) ConvertToFormat(id string) (export.Output, error) {
	p, ok := o.exportsReg.Get(id)
	if !ok {
		return export.Output{}, fmt.Errorf("%w: %s", ErrUnknownExporter, id)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.raw == nil {
		return export.Output{}, ErrNoRawOutput
	}

	out, err := runExport(p, o.raw)
	if err != nil {
		return export.Output{}, fmt.Errorf("convert to %s: %w", id, err)
	}
	o.outputs[id] = out
	return out, nil
}

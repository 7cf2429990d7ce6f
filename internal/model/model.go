// Package model defines the records that flow between ingestion, metric
// computation and export.
package model

import "github.com/imyousuf/megaparser/internal/parser"

// FileInput is a raw ingested file produced by a collector.
type FileInput struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
}

// FileObject is one analyzed file: its classification, content, computed
// metrics and optional per-plugin debug records.
type FileObject struct {
	Path      string             `json:"path"`
	Name      string             `json:"name"`
	Language  parser.Language    `json:"language"`
	Content   string             `json:"content"`
	Metrics   map[string]float64 `json:"metrics"`
	DebugInfo map[string]any     `json:"debugInfo,omitempty"`
}

// MetricNames returns the metric keys of f in no particular order.
func (f *FileObject) MetricNames() []string {
	names := make([]string, 0, len(f.Metrics))
	for k := range f.Metrics {
		names = append(names, k)
	}
	return names
}

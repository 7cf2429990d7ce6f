// Package metrics provides per-file metric plugins for source files.
package metrics

import (
	"slices"
	"sync"

	"github.com/imyousuf/megaparser/internal/parser"
)

// Registered metric plugin ids. A plugin's Name is its id and is the key
// written into a file's metrics map.
const (
	RealLinesOfCode = "RealLinesOfCode"
	SonarComplexity = "SonarComplexity"
	TodoCount       = "TodoCount"
)

// Plugin computes one named numeric metric for files of specific languages.
type Plugin interface {
	// Name returns the stable plugin id.
	Name() string

	// SupportedLanguages returns the languages the plugin applies to.
	SupportedLanguages() []parser.Language

	// Calculate returns the metric value for content. When debug is true the
	// plugin retains a debug record retrievable through DebugInfo.
	Calculate(content string, lang parser.Language, debug bool) (float64, error)

	// DebugInfo returns the debug record of the most recent debug
	// calculation, or nil if the plugin keeps none.
	DebugInfo() any
}

// Supports reports whether p applies to lang. Membership is exact; there is
// no wildcard language.
func Supports(p Plugin, lang parser.Language) bool {
	return slices.Contains(p.SupportedLanguages(), lang)
}

// Registry manages the available metric plugins keyed by id.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		order:   make([]string, 0),
	}
}

// NewDefaultRegistry creates a registry holding every built-in plugin.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewLinesOfCodePlugin())
	r.Register(NewComplexityPlugin())
	r.Register(NewTodoPlugin())
	return r
}

// Register adds p under its Name, replacing any plugin with the same id.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.Name()
	if _, exists := r.plugins[id]; !exists {
		r.order = append(r.order, id)
	}
	r.plugins[id] = p
}

// Get retrieves a plugin by id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	return p, ok
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

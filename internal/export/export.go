// Package export serializes analyzed files into output documents.
package export

import (
	"sync"

	"github.com/imyousuf/megaparser/internal/model"
)

// Registered export plugin ids.
const (
	SimpleJSON     = "SimpleJson"
	CodeChartaJSON = "CodeChartaJson"
)

// Plugin turns an analyzed batch into a single serialized document.
type Plugin interface {
	// ID returns the stable plugin id.
	ID() string

	// Extension returns the file extension of the produced document, without
	// a leading dot. Compound extensions such as "cc.json" are kept as is.
	Extension() string

	// Export serializes files.
	Export(files []model.FileObject) (string, error)
}

// Output is one produced export document.
type Output struct {
	Content   string `json:"content"`
	Extension string `json:"extension"`
}

// Registry manages the available export plugins keyed by id.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty export registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		order:   make([]string, 0),
	}
}

// NewDefaultRegistry creates a registry with both built-in exporters. The
// tree exporter is labelled with projectName.
func NewDefaultRegistry(projectName string) *Registry {
	r := NewRegistry()
	r.Register(NewSimpleJSONExporter())
	r.Register(NewCodeChartaExporter(projectName))
	return r
}

// Register adds p under its ID, replacing any plugin with the same id.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
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

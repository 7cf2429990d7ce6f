package metrics

import (
	"regexp"

	"github.com/imyousuf/megaparser/internal/parser"
)

// TodoPlugin counts TODO, FIXME, and HACK markers in any known language.
type TodoPlugin struct{}

// NewTodoPlugin creates the TodoCount plugin.
func NewTodoPlugin() *TodoPlugin {
	return &TodoPlugin{}
}

var todoMarker = regexp.MustCompile(`(?i)\b(?:TODO|FIXME|HACK)\b`)

func (p *TodoPlugin) Name() string { return TodoCount }

func (p *TodoPlugin) SupportedLanguages() []parser.Language { return parser.AllLanguages }

func (p *TodoPlugin) DebugInfo() any { return nil }

func (p *TodoPlugin) Calculate(content string, _ parser.Language, _ bool) (float64, error) {
	return float64(len(todoMarker.FindAllStringIndex(content, -1))), nil
}

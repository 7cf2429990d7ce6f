package metrics

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/imyousuf/megaparser/internal/parser"
)

// LinesOfCodePlugin counts non-blank lines after language-specific
// normalization.
type LinesOfCodePlugin struct{}

// NewLinesOfCodePlugin creates the RealLinesOfCode plugin.
func NewLinesOfCodePlugin() *LinesOfCodePlugin {
	return &LinesOfCodePlugin{}
}

var locLanguages = []parser.Language{
	parser.LangJava,
	parser.LangKotlin,
	parser.LangTypeScript,
	parser.LangCSS,
	parser.LangHTML,
	parser.LangSCSS,
	parser.LangJSON,
	parser.LangYAML,
	parser.LangXML,
	parser.LangMarkdown,
	parser.LangText,
}

var (
	lineBreak          = regexp.MustCompile(`\r\n|\r|\n`)
	markdownHeading    = regexp.MustCompile(`^#{1,6}\s`)
	markdownHorizontal = regexp.MustCompile(`^[-*_]{3,}$`)
)

func (p *LinesOfCodePlugin) Name() string { return RealLinesOfCode }

func (p *LinesOfCodePlugin) SupportedLanguages() []parser.Language { return locLanguages }

func (p *LinesOfCodePlugin) DebugInfo() any { return nil }

func (p *LinesOfCodePlugin) Calculate(content string, lang parser.Language, _ bool) (float64, error) {
	switch lang {
	case parser.LangJSON:
		return float64(countNonBlank(prettyJSON(content), nil)), nil
	case parser.LangYAML:
		return float64(countNonBlank(content, func(trimmed string) bool {
			return strings.HasPrefix(trimmed, "#")
		})), nil
	case parser.LangMarkdown:
		return float64(countNonBlank(content, func(trimmed string) bool {
			return markdownHeading.MatchString(trimmed) || markdownHorizontal.MatchString(trimmed)
		})), nil
	default:
		return float64(countNonBlank(content, nil)), nil
	}
}

// countNonBlank counts lines that are not blank after trimming and that the
// optional skip predicate does not reject.
func countNonBlank(content string, skip func(trimmed string) bool) int {
	count := 0
	for _, line := range lineBreak.Split(content, -1) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if skip != nil && skip(trimmed) {
			continue
		}
		count++
	}
	return count
}

// prettyJSON re-indents JSON so formatting does not skew the count. Invalid
// JSON is returned unchanged.
func prettyJSON(content string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
		return content
	}
	return buf.String()
}

package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dlclark/regexp2"

	"github.com/imyousuf/megaparser/internal/parser"
)

// ComplexityPattern records every match of one table entry. Matches and
// Lines are parallel slices of length Count; Lines are 1-based.
type ComplexityPattern struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Regex    string   `json:"regex"`
	Matches  []string `json:"matches"`
	Lines    []int    `json:"lines"`
	Count    int      `json:"count"`
}

// ComplexityDebug is the provenance of one complexity score. Patterns
// without matches are omitted; the rest appear in table order.
type ComplexityDebug struct {
	Patterns        []ComplexityPattern `json:"patterns"`
	TotalComplexity int                 `json:"totalComplexity"`
	Language        string              `json:"language"`
}

// ComplexityPlugin approximates cognitive complexity by counting regex
// pattern matches over comment- and string-free code. The score is the sum
// of all pattern counts with no base term.
type ComplexityPlugin struct {
	mu    sync.Mutex
	debug *ComplexityDebug
}

// NewComplexityPlugin creates the SonarComplexity plugin.
func NewComplexityPlugin() *ComplexityPlugin {
	return &ComplexityPlugin{}
}

var complexityLanguages = []parser.Language{
	parser.LangJava,
	parser.LangKotlin,
	parser.LangTypeScript,
}

func (p *ComplexityPlugin) Name() string { return SonarComplexity }

func (p *ComplexityPlugin) SupportedLanguages() []parser.Language { return complexityLanguages }

// DebugInfo returns the *ComplexityDebug of the last debug calculation.
func (p *ComplexityPlugin) DebugInfo() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debug == nil {
		return nil
	}
	return p.debug
}

func (p *ComplexityPlugin) Calculate(content string, lang parser.Language, debug bool) (float64, error) {
	result, err := AnalyzeComplexity(content, lang)
	if err != nil {
		return 0, err
	}
	if debug {
		p.mu.Lock()
		p.debug = result
		p.mu.Unlock()
	}
	return float64(result.TotalComplexity), nil
}

// AnalyzeComplexity computes the complexity score of content together with
// its full match provenance. Identical input always yields an identical
// result.
func AnalyzeComplexity(content string, lang parser.Language) (*ComplexityDebug, error) {
	table, ok := patternTables[lang]
	if !ok {
		return nil, fmt.Errorf("complexity: unsupported language %q", lang)
	}

	clean := []rune(stripCommentsAndStrings(content, lang))
	lines := newLineIndex(clean)

	result := &ComplexityDebug{
		Patterns: make([]ComplexityPattern, 0),
		Language: string(lang),
	}

	for _, cp := range table.patterns() {
		skip, err := bodySpans(cp.skips, clean)
		if err != nil {
			return nil, fmt.Errorf("complexity: pattern %s/%s: %w", cp.category, cp.name, err)
		}
		matches, at, err := findAllMatches(cp.re, clean, lines, skip)
		if err != nil {
			return nil, fmt.Errorf("complexity: pattern %s/%s: %w", cp.category, cp.name, err)
		}
		if len(matches) == 0 {
			continue
		}
		result.Patterns = append(result.Patterns, ComplexityPattern{
			Category: cp.category,
			Name:     cp.name,
			Regex:    cp.regex,
			Matches:  matches,
			Lines:    at,
			Count:    len(matches),
		})
	}

	if lang == parser.LangKotlin {
		branches, err := countWhenBranches(clean, lines)
		if err != nil {
			return nil, fmt.Errorf("complexity: when branches: %w", err)
		}
		if branches.Count > 0 {
			result.Patterns = append(result.Patterns, branches)
		}
	}

	for _, cp := range result.Patterns {
		result.TotalComplexity += cp.Count
	}
	return result, nil
}

// findAllMatches scans code for successive non-overlapping matches of re and
// returns each matched text with its 1-based line. Matches starting inside
// one of the skip spans are dropped.
func findAllMatches(re *regexp2.Regexp, code []rune, idx lineIndex, skip []span) ([]string, []int, error) {
	var (
		matches []string
		lines   []int
		next    int
		reach   int
	)
	m, err := re.FindRunesMatch(code)
	for err == nil && m != nil {
		for next < len(skip) && skip[next].start <= m.Index {
			reach = max(reach, skip[next].end)
			next++
		}
		if m.Index >= reach {
			matches = append(matches, m.String())
			lines = append(lines, idx.lineAt(m.Index))
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, nil, err
	}
	return matches, lines, nil
}

// span is a half-open range of rune offsets.
type span struct {
	start, end int
}

// bodySpans returns, sorted by start, the range from the end of every opener
// match to the next '}' or the end of code.
func bodySpans(openers []*regexp2.Regexp, code []rune) ([]span, error) {
	if len(openers) == 0 {
		return nil, nil
	}

	nextClose := make([]int, len(code)+1)
	nextClose[len(code)] = len(code)
	for i := len(code) - 1; i >= 0; i-- {
		if code[i] == '}' {
			nextClose[i] = i
		} else {
			nextClose[i] = nextClose[i+1]
		}
	}

	var spans []span
	for _, re := range openers {
		m, err := re.FindRunesMatch(code)
		for err == nil && m != nil {
			start := m.Index + m.Length
			spans = append(spans, span{start: start, end: nextClose[start]})
			m, err = re.FindNextMatch(m)
		}
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans, nil
}

// lineIndex holds the rune offsets of every '\n' in a text.
type lineIndex []int

func newLineIndex(code []rune) lineIndex {
	idx := make(lineIndex, 0, 64)
	for i, r := range code {
		if r == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

// lineAt returns the 1-based line containing rune offset.
func (idx lineIndex) lineAt(offset int) int {
	return sort.SearchInts(idx, offset) + 1
}

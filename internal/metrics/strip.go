package metrics

import (
	"strings"

	"github.com/imyousuf/megaparser/internal/parser"
)

// quoteRule describes one string literal form.
type quoteRule struct {
	delim     string
	multiline bool // literal may span lines
	escapes   bool // backslash escapes the next character
}

// stripRules holds the comment and literal syntax of a language.
type stripRules struct {
	lineComment string
	blockOpen   string
	blockClose  string
	quotes      []quoteRule // longest delimiters first
}

var languageStripRules = map[parser.Language]stripRules{
	parser.LangJava: {
		lineComment: "//",
		blockOpen:   "/*",
		blockClose:  "*/",
		quotes: []quoteRule{
			{delim: `"""`, multiline: true, escapes: true},
			{delim: `"`, escapes: true},
			{delim: `'`, escapes: true},
		},
	},
	parser.LangKotlin: {
		lineComment: "//",
		blockOpen:   "/*",
		blockClose:  "*/",
		quotes: []quoteRule{
			{delim: `"""`, multiline: true},
			{delim: `"`, escapes: true},
			{delim: `'`, escapes: true},
			{delim: "`"},
		},
	},
	parser.LangTypeScript: {
		lineComment: "//",
		blockOpen:   "/*",
		blockClose:  "*/",
		quotes: []quoteRule{
			{delim: "`", multiline: true, escapes: true},
			{delim: `"`, escapes: true},
			{delim: `'`, escapes: true},
		},
	},
}

// stripCommentsAndStrings removes comments and string literal contents from
// code in a single left-to-right pass. Comments are replaced by the line
// terminators they contained; string literals keep their delimiters and line
// terminators. The result therefore has exactly as many lines as code.
func stripCommentsAndStrings(code string, lang parser.Language) string {
	rules, ok := languageStripRules[lang]
	if !ok {
		return code
	}

	rs := []rune(code)
	n := len(rs)
	var b strings.Builder
	b.Grow(len(code))

	i := 0
outer:
	for i < n {
		if rules.lineComment != "" && hasRunePrefix(rs, i, rules.lineComment) {
			for i < n && rs[i] != '\n' && rs[i] != '\r' {
				i++
			}
			continue
		}

		if rules.blockOpen != "" && hasRunePrefix(rs, i, rules.blockOpen) {
			i += len(rules.blockOpen)
			for i < n && !hasRunePrefix(rs, i, rules.blockClose) {
				if isLineTerminator(rs[i]) {
					b.WriteRune(rs[i])
				}
				i++
			}
			if i < n {
				i += len(rules.blockClose)
			}
			continue
		}

		for _, q := range rules.quotes {
			if !hasRunePrefix(rs, i, q.delim) {
				continue
			}
			b.WriteString(q.delim)
			i += len(q.delim)
			for i < n {
				if q.escapes && rs[i] == '\\' && i+1 < n {
					if isLineTerminator(rs[i+1]) {
						b.WriteRune(rs[i+1])
					}
					i += 2
					continue
				}
				if hasRunePrefix(rs, i, q.delim) {
					b.WriteString(q.delim)
					i += len(q.delim)
					continue outer
				}
				if isLineTerminator(rs[i]) {
					if !q.multiline {
						// Unterminated literal ends at the line break.
						continue outer
					}
					b.WriteRune(rs[i])
				}
				i++
			}
			continue outer
		}

		b.WriteRune(rs[i])
		i++
	}
	return b.String()
}

// hasRunePrefix reports whether rs[i:] starts with the ASCII token prefix.
func hasRunePrefix(rs []rune, i int, prefix string) bool {
	if i+len(prefix) > len(rs) {
		return false
	}
	for j := 0; j < len(prefix); j++ {
		if rs[i+j] != rune(prefix[j]) {
			return false
		}
	}
	return true
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r'
}

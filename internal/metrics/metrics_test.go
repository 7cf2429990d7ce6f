package metrics

import (
	"reflect"
	"strings"
	"testing"

	"github.com/imyousuf/megaparser/internal/parser"
)

func TestLinesOfCode(t *testing.T) {
	tests := []struct {
		name    string
		lang    parser.Language
		content string
		want    float64
	}{
		{"blank only", parser.LangJava, "\n\n   \n\t\n", 0},
		{"empty", parser.LangText, "", 0},
		{"plain", parser.LangJava, "class A {\n\n  int x;\n}\n", 3},
		{"mixed line endings", parser.LangText, "a\r\nb\rc\n\nd", 4},
		{"json minified", parser.LangJSON, `{"a":1,"b":[1,2]}`, 8},
		{"json already pretty", parser.LangJSON, "{\n  \"a\": 1\n}\n", 3},
		{"json invalid falls back", parser.LangJSON, "{oops\n\n}", 2},
		{"yaml comments", parser.LangYAML, "# header\na: 1\n\n  # nested comment\nb: 2\n", 2},
		{"markdown headings and rules", parser.LangMarkdown, "# Title\n\ntext\n---\n## Sub\nmore\n***\n", 2},
		{"markdown bare hash is text", parser.LangMarkdown, "#\n# a\nb\n---\n", 2},
		{"markdown hashtag is text", parser.LangMarkdown, "#hashtag\n", 1},
		{"css", parser.LangCSS, "a {\n  color: red;\n}\n", 3},
	}

	p := NewLinesOfCodePlugin()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Calculate(tt.content, tt.lang, false)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %v lines, got %v", tt.want, got)
			}
		})
	}
}

func TestLinesOfCodeSupportedLanguages(t *testing.T) {
	p := NewLinesOfCodePlugin()
	for _, lang := range parser.AllLanguages {
		if !Supports(p, lang) {
			t.Errorf("expected line count to support %s", lang)
		}
	}
	if Supports(p, parser.LangUnknown) {
		t.Error("line count must not support unknown")
	}
	if p.DebugInfo() != nil {
		t.Error("line count keeps no debug info")
	}
}

func TestTodoCount(t *testing.T) {
	src := "// TODO: fix\n// fixme later\n/* HACK */\nconst todos = 1;\n"
	got, err := NewTodoPlugin().Calculate(src, parser.LangTypeScript, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("expected 3 markers, got %v", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	want := []string{RealLinesOfCode, SonarComplexity, TodoCount}
	if got := r.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	for _, id := range want {
		p, ok := r.Get(id)
		if !ok {
			t.Fatalf("plugin %s not registered", id)
		}
		if p.Name() != id {
			t.Errorf("plugin registered as %s reports name %s", id, p.Name())
		}
	}
	if _, ok := r.Get("Nope"); ok {
		t.Error("unexpected plugin for unknown id")
	}

	// Re-registering keeps the original position.
	r.Register(NewLinesOfCodePlugin())
	if got := r.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() after re-register = %v, want %v", got, want)
	}
}

func TestSupportsIsExact(t *testing.T) {
	p := NewComplexityPlugin()
	for _, lang := range []parser.Language{parser.LangJava, parser.LangKotlin, parser.LangTypeScript} {
		if !Supports(p, lang) {
			t.Errorf("complexity should support %s", lang)
		}
	}
	for _, lang := range []parser.Language{parser.LangCSS, parser.LangJSON, parser.LangMarkdown, parser.LangUnknown} {
		if Supports(p, lang) {
			t.Errorf("complexity should not support %s", lang)
		}
	}
}

func TestStripPreservesLines(t *testing.T) {
	tests := []struct {
		name string
		lang parser.Language
		src  string
		want string
	}{
		{
			name: "line comment",
			lang: parser.LangJava,
			src:  "int x; // if (y) {}\nint z;",
			want: "int x; \nint z;",
		},
		{
			name: "block comment spanning lines",
			lang: parser.LangJava,
			src:  "a /* one\ntwo\nthree */ b",
			want: "a \n\n b",
		},
		{
			name: "comment marker inside string",
			lang: parser.LangTypeScript,
			src:  `const url = "http://x"; if (a) {}`,
			want: `const url = ""; if (a) {}`,
		},
		{
			name: "escaped quote",
			lang: parser.LangJava,
			src:  `s = "a\"b // c"; d`,
			want: `s = ""; d`,
		},
		{
			name: "template literal spanning lines",
			lang: parser.LangTypeScript,
			src:  "x = `if (a)\n${b}\n`;\ny",
			want: "x = `\n\n`;\ny",
		},
		{
			name: "kotlin raw string",
			lang: parser.LangKotlin,
			src:  "val s = \"\"\"\nwhen (x) {\n\"\"\"\nval t = 'c'",
			want: "val s = \"\"\"\n\n\"\"\"\nval t = ''",
		},
		{
			name: "unterminated string stops at line end",
			lang: parser.LangJava,
			src:  "a = \"open\nif (b) {}",
			want: "a = \"\nif (b) {}",
		},
		{
			name: "typescript comments",
			lang: parser.LangTypeScript,
			src:  "// function f() {}\n/* if (x) */ y",
			want: "\n y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripCommentsAndStrings(tt.src, tt.lang)
			if got != tt.want {
				t.Errorf("stripCommentsAndStrings() = %q, want %q", got, tt.want)
			}
			if strings.Count(got, "\n") != strings.Count(tt.src, "\n") {
				t.Errorf("line count changed: %d -> %d", strings.Count(tt.src, "\n"), strings.Count(got, "\n"))
			}
		})
	}
}

package metrics

import (
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/imyousuf/megaparser/internal/parser"
)

// Pattern categories.
const (
	CategoryFunctions   = "Functions"
	CategoryControlFlow = "Control Flow"
	CategoryOperators   = "Operators"
	CategoryJava        = "Java Specific"
	CategoryKotlin      = "Kotlin Specific"
	CategoryTypeScript  = "TypeScript Specific"
)

// matchTimeout bounds a single regex search. A timeout fails only the file
// being analyzed.
const matchTimeout = 5 * time.Second

// patternDef is one named entry of a language's complexity table.
type patternDef struct {
	category string
	name     string
	regex    string
}

// compiledPattern is a patternDef with its compiled expressions.
type compiledPattern struct {
	patternDef
	re    *regexp2.Regexp
	skips []*regexp2.Regexp
}

func compilePattern(expr string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// patternTable compiles its definitions on first use.
type patternTable struct {
	defs []patternDef
	// skipBodies maps a pattern name to block openers. Matches between the
	// end of an opener and the next closing brace are not counted.
	skipBodies map[string][]string
	once       sync.Once
	compiled   []compiledPattern
}

func (t *patternTable) patterns() []compiledPattern {
	t.once.Do(func() {
		t.compiled = make([]compiledPattern, len(t.defs))
		for i, d := range t.defs {
			cp := compiledPattern{
				patternDef: d,
				re:         compilePattern(d.regex, regexp2.Multiline),
			}
			for _, opener := range t.skipBodies[d.name] {
				cp.skips = append(cp.skips, compilePattern(opener, regexp2.None))
			}
			t.compiled[i] = cp
		}
	})
	return t.compiled
}

var kotlinSkipBodies = map[string][]string{
	"Lambda": {kotlinWhenOpener, kotlinScopeOpener},
}

// ifNotElse matches an "if" keyword that is not the tail of "else if".
const ifNotElse = `(?<!\belse\s+)\bif\b`

var javaPatterns = []patternDef{
	{CategoryFunctions, "Method", `(?:(?:public|private|protected|static)\s+)*\b(?!(?:else|new|return|throw)\b)[\w<>\[\]]+\s+[\w_]+\s*\([^)]*\)\s*\{`},
	{CategoryFunctions, "Constructor", `\b[A-Z][\w_]*\s*\([^)]*\)\s*\{`},

	{CategoryControlFlow, "If", ifNotElse},
	{CategoryControlFlow, "Else If", `\belse\s+if\b`},
	{CategoryControlFlow, "For", `\bfor\b`},
	{CategoryControlFlow, "While", `\bwhile\b`},
	{CategoryControlFlow, "Catch", `\bcatch\b`},
	{CategoryControlFlow, "Throw", `\bthrow\b`},
	{CategoryControlFlow, "Case", `\bcase\b(?!\s*:.*\bcase\b)`},

	{CategoryOperators, "AND", `&&`},
	{CategoryOperators, "OR", `\|\|`},
	{CategoryOperators, "Ternary", `(?<!<)\?(?![:>])`},

	{CategoryJava, "Anonymous Class", `new\s+\w+\s*\([^)]*\)\s*\{`},
	{CategoryJava, "Lambda", `->(?!\s*\{)`},
}

const (
	kotlinWhenOpener  = `\bwhen\s*\([^)]*\)\s*\{`
	kotlinScopeOpener = `\.(?:let|also|run|apply|with)\s*\{`
)

var kotlinPatterns = []patternDef{
	{CategoryFunctions, "Function", `^[ \t]*(?:(?:public|private|protected|internal|override|open|abstract|final|suspend|inline|operator|infix|tailrec)\s+)*` +
		`fun\b\s*` +
		`(?:<[^>]+>\s*)?` + // generic parameters
		`(?:[A-Za-z0-9_<>.:?]+\.)?` + // extension receiver
		`[A-Za-z0-9_]+` +
		`\s*\([^)]*\)` +
		`(?:\s*:\s*[\w<>\[\]\?]+)?` + // return type
		`\s*\{`},

	{CategoryControlFlow, "If", ifNotElse},
	{CategoryControlFlow, "Else If", `\belse\s+if\b`},
	{CategoryControlFlow, "For", `\bfor\b(?=\s*\([^)]*\)|\s+in\b)`},
	{CategoryControlFlow, "While", `\bwhile\b`},
	{CategoryControlFlow, "Catch", `\bcatch\b`},
	{CategoryControlFlow, "Throw", `\bthrow\b`},

	{CategoryOperators, "AND", `&&(?!\s*\{)`},
	{CategoryOperators, "OR", `\|\|(?!\s*\{)`},

	{CategoryKotlin, "When", kotlinWhenOpener},
	{CategoryKotlin, "Scope Functions", `(?<!\?)\.(let|also|run|apply|with)\s*\{`},
	{CategoryKotlin, "Object", `\bobject\s*:`},
	{CategoryKotlin, "Companion Object", `\bcompanion\s+object\b`},
	// Arrows inside when blocks and scope-function lambdas are counted elsewhere.
	{CategoryKotlin, "Lambda", `->\s*(?!\{|$)`},
}

// tsIdentifier excludes control keywords from positions where a function
// name is expected.
const tsIdentifier = `(?!(?:if|for|while|switch|catch|do|function|return|else)\b)[A-Za-z_$][A-Za-z0-9_$]*`

var typeScriptPatterns = []patternDef{
	{CategoryFunctions, "Named Function Declarations", `^[ \t]*(?:export\s+(?:default\s+)?)?(?:async\s+)?function\s+` +
		tsIdentifier + `\s*\([^)]*\)` +
		`(?:\s*:\s*[A-Za-z_$][A-Za-z0-9_$<>,|\[\]?]*)?` +
		`\s*\{`},
	{CategoryFunctions, "Class/Object Methods", `^[ \t]*(?:(?:public|private|protected|static|abstract|readonly|async)\s+)*` +
		tsIdentifier + `(?:<[^>]*>)?\s*\([^)]*\)` +
		`(?:\s*:\s*[A-Za-z_$][A-Za-z0-9_$<>,|\[\]? ]*)?` +
		`\s*\{`},
	{CategoryFunctions, "Arrow Functions", `^[ \t]*(?:const|let|var)\s+` +
		tsIdentifier + `\s*=\s*` +
		`(?:async\s+)?` +
		`(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)\s*=>\s*\{`},

	{CategoryControlFlow, "If", `(?<!\belse\s+)\bif\s*\(`},
	{CategoryControlFlow, "Else If", `\belse\s+if\s*\(`},
	{CategoryControlFlow, "For", `\bfor\s*\(`},
	{CategoryControlFlow, "While", `\bwhile\s*\(`},
	{CategoryControlFlow, "Do While", `\bdo\b`},
	{CategoryControlFlow, "Try", `\btry\b`},
	{CategoryControlFlow, "Catch", `\bcatch\s*\(`},
	{CategoryControlFlow, "Throw", `\bthrow\b`},
	{CategoryControlFlow, "Switch", `\bswitch\s*\(`},
	{CategoryControlFlow, "Case", `\bcase\b(?!\s*:.*\bcase\b)`},
	{CategoryControlFlow, "Filter", `\.filter\s*\(`},
	{CategoryControlFlow, "Map", `\.map\s*\(`},
	{CategoryControlFlow, "ForEach", `\.forEach\s*\(`},

	{CategoryOperators, "AND", `&&(?!\s*\{)`},
	{CategoryOperators, "OR", `\|\|(?!\s*\{)`},
	{CategoryOperators, "Nullish", `\?\?(?!\.)`},
	{CategoryOperators, "Ternary", `(?<!\?)\?(?!\?|\.)(?=\s*[\w'"` + "`" + `\(\[{]|\s*(?:true|false|null))(?![.:])`},

	{CategoryTypeScript, "Optional Chaining", `\w+(?:\?\.[\w$]+)+`},
	{CategoryTypeScript, "Type Guard", `\bis\s+[A-Z]\w*\b`},
}

var patternTables = map[parser.Language]*patternTable{
	parser.LangJava:       {defs: javaPatterns},
	parser.LangKotlin:     {defs: kotlinPatterns, skipBodies: kotlinSkipBodies},
	parser.LangTypeScript: {defs: typeScriptPatterns},
}

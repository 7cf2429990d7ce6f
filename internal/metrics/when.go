package metrics

import (
	"github.com/dlclark/regexp2"
)

// whenBranchesRegex is the display regex of the synthetic When Branches entry.
const whenBranchesRegex = "->"

var (
	// whenBlock captures the body of a when (subject) { ... } block up to the
	// first closing brace.
	whenBlock = compilePattern(`\bwhen\s*\([^)]*\)\s*\{([^}]*)\}`, regexp2.None)

	// whenBranch matches a well-formed branch head: else, is Type, or a
	// literal/identifier with an optional argument list, followed by ->.
	whenBranch = compilePattern(`(?:else|is\s+\w+|\d+|"[^"]*"|'[^']*'|\w+(?:\([^)]*\))?)[ \t]*->`, regexp2.None)
)

// countWhenBranches finds every branch of every when block in code. Each
// branch is attributed to the line on which its block starts.
func countWhenBranches(code []rune, idx lineIndex) (ComplexityPattern, error) {
	result := ComplexityPattern{
		Category: CategoryKotlin,
		Name:     "When Branches",
		Regex:    whenBranchesRegex,
		Matches:  make([]string, 0),
		Lines:    make([]int, 0),
	}

	block, err := whenBlock.FindRunesMatch(code)
	for err == nil && block != nil {
		startLine := idx.lineAt(block.Index)
		body := block.GroupByNumber(1).Runes()

		branch, berr := whenBranch.FindRunesMatch(body)
		for berr == nil && branch != nil {
			result.Matches = append(result.Matches, branch.String())
			result.Lines = append(result.Lines, startLine)
			branch, berr = whenBranch.FindNextMatch(branch)
		}
		if berr != nil {
			return ComplexityPattern{}, berr
		}

		block, err = whenBlock.FindNextMatch(block)
	}
	if err != nil {
		return ComplexityPattern{}, err
	}

	result.Count = len(result.Matches)
	return result, nil
}

package watcher

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SkipDirs are directory names never descended into when loading ignore
// files, collecting or watching. .megaparser holds the project config and
// the archive database.
var SkipDirs = []string{".git", "node_modules", "vendor", ".megaparser"}

// IsSkipDir reports whether a directory with the given base name is always
// skipped.
func IsSkipDir(name string) bool {
	return slices.Contains(SkipDirs, name)
}

// GitIgnoreMatcher decides whether paths under a set of roots are ignored,
// either by a .gitignore file inside a root or by a configured exclude glob.
// Exclude globs always win; .gitignore rules are applied in load order so a
// later negation re-includes a path.
type GitIgnoreMatcher struct {
	roots    []string
	excludes []string
	exclude  []ignoreRule
	rules    []ignoreRule
}

type ignoreRule struct {
	pattern  string
	negation bool
	dirOnly  bool
	anchored bool   // pattern contains a slash and matches from basePath
	basePath string // directory the pattern is relative to, "" for none
}

// NewGitIgnoreMatcher creates a matcher for roots. excludePatterns are
// doublestar globs relative to each root; a pattern without a slash matches
// any path component.
func NewGitIgnoreMatcher(roots []string, excludePatterns []string) *GitIgnoreMatcher {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		clean = append(clean, filepath.Clean(r))
	}
	return &GitIgnoreMatcher{
		roots:    clean,
		excludes: excludePatterns,
	}
}

// LoadPatterns (re)reads every .gitignore below the roots.
func (m *GitIgnoreMatcher) LoadPatterns() error {
	m.exclude = nil
	m.rules = nil

	for _, p := range m.excludes {
		if len(m.roots) == 0 {
			m.exclude = append(m.exclude, parsePattern(p, ""))
		}
		for _, root := range m.roots {
			m.exclude = append(m.exclude, parsePattern(p, root))
		}
	}

	for _, root := range m.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible entries
			}
			if d.IsDir() {
				if path != root && IsSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Name() == ".gitignore" {
				rules, loadErr := loadGitIgnoreFile(path)
				if loadErr != nil {
					return nil // skip unreadable ignore files
				}
				m.rules = append(m.rules, rules...)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether path should be ignored. isDir tells whether path
// itself is a directory; its ancestors always are.
func (m *GitIgnoreMatcher) Match(path string, isDir bool) bool {
	if abs, err := filepath.Abs(path); err == nil && len(m.roots) > 0 {
		path = abs
	}
	for _, r := range m.exclude {
		if r.matches(path, isDir) {
			return true
		}
	}

	matched := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			matched = !r.negation
		}
	}
	return matched
}

func loadGitIgnoreFile(gitignorePath string) ([]ignoreRule, error) {
	f, err := os.Open(gitignorePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	basePath := filepath.Dir(gitignorePath)
	var rules []ignoreRule

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, parsePattern(line, basePath))
	}
	return rules, scanner.Err()
}

func parsePattern(pattern string, basePath string) ignoreRule {
	rule := ignoreRule{basePath: basePath}

	if strings.HasPrefix(pattern, "!") {
		rule.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		rule.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.Contains(pattern, "/") {
		rule.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}

	rule.pattern = pattern
	return rule
}

// matches tests the rule against path and each of its ancestors below
// basePath, so an ignored directory ignores everything inside it.
func (r ignoreRule) matches(path string, isDir bool) bool {
	rel := filepath.ToSlash(path)
	if r.basePath != "" {
		var err error
		rel, err = filepath.Rel(r.basePath, path)
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
			return false
		}
	}

	parts := splitPath(rel)
	for i := 1; i <= len(parts); i++ {
		candidateIsDir := i < len(parts) || isDir
		if r.dirOnly && !candidateIsDir {
			continue
		}

		var ok bool
		if r.anchored {
			ok, _ = doublestar.Match(r.pattern, strings.Join(parts[:i], "/"))
		} else {
			ok, _ = doublestar.Match(r.pattern, parts[i-1])
		}
		if ok {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var result []string
	for _, p := range strings.Split(filepath.ToSlash(path), "/") {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

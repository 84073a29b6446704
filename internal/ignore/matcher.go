// Package ignore decides which paths a directory import skips, using
// gitignore-style rules from a .sigregignore file.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the per-tree ignore file read by LoadRules.
const FileName = ".sigregignore"

// DefaultRules are applied before user rules. A user "!" rule can re-include
// anything they exclude.
var DefaultRules = []string{
	".git/",
	".sigreg/",
	"node_modules/",
	"lib/forge-std/",
	"cache/",
	"out/",
	"artifacts/build-info/",
	"coverage/",
}

type rule struct {
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
	nested   bool
}

// Matcher applies rules in order; the last matching rule wins.
type Matcher struct {
	rules []rule
}

func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(DefaultRules)+len(userRules))
	all = append(all, DefaultRules...)
	all = append(all, userRules...)

	m := &Matcher{rules: make([]rule, 0, len(all))}
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			m.rules = append(m.rules, parsed)
		}
	}
	return m
}

// LoadRules reads root/.sigregignore. A missing file yields no rules.
func LoadRules(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	defer f.Close()

	var rules []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return rules, nil
}

// ShouldIgnore reports whether relPath, relative to the import root, is
// excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" || relPath == "." {
		return false
	}
	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negated = true
		line = rest
	}
	if rest, ok := strings.CutPrefix(line, "/"); ok {
		r.anchored = true
		line = rest
	}
	if rest, ok := strings.CutSuffix(line, "/"); ok {
		r.dirOnly = true
		line = rest
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	r.nested = strings.Contains(line, "/")
	r.re = regexp.MustCompile("^" + globToRegex(line) + "$")
	return r, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		return r.matchesDir(relPath, isDir)
	}

	if r.anchored {
		return r.re.MatchString(relPath)
	}

	segments := strings.Split(relPath, "/")
	if r.nested {
		for i := range segments {
			if r.re.MatchString(strings.Join(segments[i:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range segments {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

// matchesDir reports whether relPath is the rule's directory or lies beneath
// it. Unanchored rules may match at any depth.
func (r rule) matchesDir(relPath string, isDir bool) bool {
	segments := strings.Split(relPath, "/")
	last := len(segments) - 1
	if isDir {
		last = len(segments)
	}
	starts := len(segments)
	if r.anchored {
		starts = 1
	}
	for start := 0; start < starts; start++ {
		for end := start + 1; end <= last; end++ {
			if r.re.MatchString(strings.Join(segments[start:end], "/")) {
				return true
			}
		}
	}
	return false
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return b.String()
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	return strings.TrimPrefix(path, "/")
}

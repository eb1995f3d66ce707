// Package gitignore implements gitignore pattern matching per
// https://git-scm.com/docs/gitignore, so directory ingestion skips what
// git would skip.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled gitignore patterns. Safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negation bool // pattern starts with !
	dirOnly  bool // pattern ends with /
	anchored bool // pattern contains or starts with /
	base     string
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds a single gitignore pattern.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase adds a pattern that only applies under base. Nested
// .gitignore files pass their directory relative to the scan root.
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return
	}

	r := rule{base: base}

	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = strings.TrimPrefix(pattern, `\`)
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A pattern with an internal slash applies from the root: "doc/frotz"
	// means /doc/frotz, not **/doc/frotz.
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile reads patterns from a .gitignore file.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gitignore: %w", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		m.AddPatternWithBase(s.Text(), base)
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read gitignore: %w", err)
	}
	return nil
}

// Match reports whether path is ignored. The last matching rule wins, so
// a later negation can re-include an ignored path.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if matchRule(path, isDir, r) {
			ignored = !r.negation
		}
	}
	return ignored
}

// matchRule checks one rule. Directory-only patterns also match files
// inside the directory: "temp/" ignores "temp/file.go".
func matchRule(path string, isDir bool, r rule) bool {
	if r.base != "" {
		if path == r.base {
			path = filepath.Base(path)
		} else if strings.HasPrefix(path, r.base+"/") {
			path = strings.TrimPrefix(path, r.base+"/")
		} else {
			return false
		}
	}

	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.regex.MatchString(path) {
			if r.dirOnly {
				return isDir
			}
			return true
		}
		if r.dirOnly {
			// Files under an anchored ignored directory.
			for i := range parts[:len(parts)-1] {
				if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(basename) || r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex converts a gitignore glob to a regular expression.
func patternToRegex(pattern string) string {
	var out strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" matches any number of leading directories.
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					out.WriteString(".*")
					i += 2
					continue
				}
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return out.String()
}

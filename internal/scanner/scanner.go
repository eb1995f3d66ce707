// Package scanner discovers ingestible documents under a directory root.
// It skips hidden entries, gitignored paths, binaries, oversized files,
// and files that commonly hold credentials.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pinpoint-search/pinpoint/internal/gitignore"
)

// DefaultMaxFileSize bounds what is still plausibly a prose document.
const DefaultMaxFileSize = 4 << 20

// matcherCacheSize caps the per-directory gitignore matcher cache.
const matcherCacheSize = 256

// File is one discovered document candidate.
type File struct {
	// ID is the slash-separated path relative to the scan root. It doubles
	// as the document ID, so re-scanning the same tree replaces content
	// instead of duplicating it.
	ID      string
	AbsPath string
	Size    int64
}

// Options configures a Scanner.
type Options struct {
	// MaxFileSize in bytes; 0 takes DefaultMaxFileSize.
	MaxFileSize int64

	// RespectGitignore skips paths matched by .gitignore files, including
	// nested ones.
	RespectGitignore bool
}

// Scanner walks a directory tree and reports ingestible files.
type Scanner struct {
	maxFileSize      int64
	respectGitignore bool

	// matchers caches parsed gitignore matchers by directory so deep trees
	// don't re-parse the same files on every candidate.
	matchers *lru.Cache[string, *gitignore.Matcher]
}

// New creates a Scanner.
func New(opts Options) (*Scanner, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	matchers, err := lru.New[string, *gitignore.Matcher](matcherCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore matcher cache: %w", err)
	}
	return &Scanner{
		maxFileSize:      opts.MaxFileSize,
		respectGitignore: opts.RespectGitignore,
		matchers:         matchers,
	}, nil
}

// Scan returns the ingestible files under root in walk order. A root that
// is itself a file yields that single file.
func (s *Scanner) Scan(ctx context.Context, root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}

	if !info.IsDir() {
		if s.excludeFile(filepath.Base(absRoot), info.Size(), absRoot) {
			return nil, fmt.Errorf("%s is not an ingestible file", root)
		}
		return []File{{ID: filepath.Base(absRoot), AbsPath: absRoot, Size: info.Size()}}, nil
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if s.respectGitignore && s.gitignored(absRoot, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if s.respectGitignore && s.gitignored(absRoot, rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.excludeFile(d.Name(), info.Size(), path) {
			return nil
		}

		files = append(files, File{ID: filepath.ToSlash(rel), AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

// excludeFile applies the per-file filters: sensitive names, size, binary
// content.
func (s *Scanner) excludeFile(name string, size int64, path string) bool {
	if size > s.maxFileSize {
		return true
	}
	for _, pattern := range sensitivePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return isBinary(path)
}

// gitignored checks rel against the .gitignore files of the root and every
// ancestor directory of rel.
func (s *Scanner) gitignored(absRoot, rel string, isDir bool) bool {
	if m := s.matcher(absRoot, ""); m != nil && m.Match(rel, isDir) {
		return true
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	base := ""
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		base = filepath.Join(base, part)
		if m := s.matcher(filepath.Join(absRoot, base), filepath.ToSlash(base)); m != nil && m.Match(rel, isDir) {
			return true
		}
	}
	return false
}

// matcher returns the cached gitignore matcher for dir, or nil when dir
// has no .gitignore.
func (s *Scanner) matcher(dir, base string) *gitignore.Matcher {
	if m, ok := s.matchers.Get(dir); ok {
		return m
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}
	s.matchers.Add(dir, m)
	return m
}

// isBinary sniffs the first 512 bytes for a null byte.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// sensitivePatterns name files that are never indexed regardless of other
// settings.
var sensitivePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}

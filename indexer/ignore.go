package indexer

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher decides which vault paths are eligible for indexing. A path
// must carry an indexable extension and fall outside the ignore patterns.
type IgnoreMatcher struct {
	vaultRoot  string
	extensions map[string]bool
	matcher    *ignore.GitIgnore
	ignoreDirs []string
}

// NewIgnoreMatcher builds a matcher from the configured extensions and
// ignore patterns, layered with the vault's .gitignore when present.
func NewIgnoreMatcher(vaultRoot string, extensions, ignorePatterns []string) *IgnoreMatcher {
	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}

	lines := append([]string{}, ignorePatterns...)
	gitignorePath := filepath.Join(vaultRoot, ".gitignore")
	if gi, err := ignore.CompileIgnoreFileAndLines(gitignorePath, lines...); err == nil {
		return &IgnoreMatcher{
			vaultRoot:  vaultRoot,
			extensions: extMap,
			matcher:    gi,
			ignoreDirs: ignorePatterns,
		}
	}

	return &IgnoreMatcher{
		vaultRoot:  vaultRoot,
		extensions: extMap,
		matcher:    ignore.CompileIgnoreLines(lines...),
		ignoreDirs: ignorePatterns,
	}
}

// IsEligible reports whether a vault-relative path should flow through the
// pipeline. Hidden files and files under ignored directories are excluded.
func (m *IgnoreMatcher) IsEligible(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "" || strings.HasPrefix(relPath, "..") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(relPath))
	if !m.extensions[ext] {
		return false
	}

	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}

	return !m.matcher.MatchesPath(relPath)
}

// ShouldSkipDir reports whether a directory subtree can be skipped during a
// scan.
func (m *IgnoreMatcher) ShouldSkipDir(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "" || relPath == "." {
		return false
	}

	base := filepath.Base(relPath)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, dir := range m.ignoreDirs {
		if base == dir {
			return true
		}
	}

	return m.matcher.MatchesPath(relPath + "/")
}

// Helper functions for path normalization and cross-platform cache keys
package utils

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath normalizes a file path into a site-relative POSIX form.
// Backslashes become forward slashes so the same content tree produces the
// same page IDs on every platform. This is the single canonicalization
// point; everything downstream trusts the result.
func NormalizePath(path string) string {
	// Fast path: no backslashes and no leading ./
	if !strings.Contains(path, "\\") && !strings.HasPrefix(path, "./") {
		return path
	}

	var b strings.Builder
	b.Grow(len(path))

	start := 0
	if strings.HasPrefix(path, "./") {
		start = 2
	}
	for i := start; i < len(path); i++ {
		c := path[i]
		if c == '\\' {
			b.WriteByte('/')
		} else {
			b.WriteByte(c)
		}
	}

	result := b.String()

	// Handle Windows drive letter casing if present
	if runtime.GOOS == "windows" && len(result) >= 2 && result[1] == ':' {
		return strings.ToUpper(result[:1]) + result[1:]
	}

	return result
}

// SafeRel is a wrapper around filepath.Rel that normalizes both paths first
// and always returns forward slashes.
func SafeRel(base, target string) (string, error) {
	base = filepath.FromSlash(NormalizePath(base))
	target = filepath.FromSlash(NormalizePath(target))
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsSubPath reports whether target is base or lives under base.
func IsSubPath(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

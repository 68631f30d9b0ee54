// Package security guards report output paths against directory escapes.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// JoinWithin joins name onto dir after sanitising it into a single path
// element, so the result can never leave dir lexically.
func JoinWithin(dir, name string) (string, error) {
	clean := SanitizeFilename(name)
	if clean == "." || clean == ".." {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	joined := filepath.Join(dir, clean)
	if !within(filepath.Clean(dir), joined) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	return joined, nil
}

// ValidatePathWithinDirectory checks that filePath stays inside safeDir on
// disk. Symlinks are resolved for the path or, when it does not exist yet,
// for its nearest existing parent.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	if !within(canonicalSafeDir, canonicalize(absPath)) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in p, walking up to the nearest existing
// ancestor when p itself does not exist.
func canonicalize(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for check := p; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return p
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, p)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

func within(base, p string) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SanitizeFilename makes a safe filename from an arbitrary string such as a
// run ID or source file name. Characters other than ASCII letters, digits,
// dot, underscore and dash collapse into a single underscore, and the result
// is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

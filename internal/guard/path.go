// Package guard implements the safety boundary for remotely issued
// instructions: path restriction, shell command blocklisting, and
// environment sanitization. These are best-effort guards against
// catastrophic mistakes, not a sandbox of last resort: anything not
// explicitly denied is allowed.
package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied marks a path rejected by the PathGuard.
// The sentinel text is part of the wire contract: result errors for
// protected paths contain "Access denied".
var ErrAccessDenied = errors.New("Access denied")

// systemPrefixes are OS-sensitive directories no remote command may touch.
// /private/etc is the macOS alias for /etc after symlink resolution.
var systemPrefixes = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/private/etc/",
}

// homeSubdirs are credential-bearing directories under the user's home.
var homeSubdirs = []string{
	".ssh",
	".aws",
	".gnupg",
	filepath.Join(".config", "gcloud"),
}

// PathGuard validates filesystem paths against protected locations.
// Symlinks are resolved before comparison, which closes the obvious
// "symlink a dotfile to a blocked path" bypass.
type PathGuard struct{}

// NewPathGuard creates a PathGuard.
func NewPathGuard() *PathGuard {
	return &PathGuard{}
}

// Validate resolves path to its canonical form and rejects it when it is
// equal to or nested under a protected prefix. Returns the resolved path
// so callers operate on the canonical form, never the raw input.
func (g *PathGuard) Validate(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path must not be empty")
	}

	resolved, err := Canonicalize(path)
	if err != nil {
		return "", err
	}

	for _, prefix := range blockedPrefixes() {
		trimmed := strings.TrimSuffix(prefix, string(filepath.Separator))
		if resolved == trimmed || strings.HasPrefix(resolved, trimmed+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %q is under protected path %q", ErrAccessDenied, path, trimmed)
		}
	}
	return resolved, nil
}

// Canonicalize resolves a path to its absolute, symlink-free form.
//
// For paths that do not exist yet (a file about to be written), the parent
// directory is resolved canonically and the base name re-appended, which
// closes the "write through a not-yet-created intermediate path" gap. When
// even the parent cannot be resolved, the naive absolute path is returned
// as a best effort.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}

	parent, parentErr := filepath.EvalSymlinks(filepath.Dir(abs))
	if parentErr == nil {
		return filepath.Join(parent, filepath.Base(abs)), nil
	}
	return abs, nil
}

// blockedPrefixes returns the full deny list. Home subdirectories are
// recomputed per invocation so a changed HOME is honored immediately.
func blockedPrefixes() []string {
	prefixes := make([]string, 0, len(systemPrefixes)+len(homeSubdirs))
	prefixes = append(prefixes, systemPrefixes...)

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return prefixes
	}
	// Compare against the canonical home so a symlinked home directory
	// still matches resolved paths.
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}
	for _, sub := range homeSubdirs {
		prefixes = append(prefixes, filepath.Join(home, sub)+string(filepath.Separator))
	}
	return prefixes
}

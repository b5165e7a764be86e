// Package confine resolves configuration-relative paths against the server
// root and rejects any path that would resolve outside of it.
package confine

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/yndnr/hostgate/internal/core/domain"
)

// Root is an absolute, cleaned server root directory.
type Root string

// NewRoot returns the absolute form of dir.
func NewRoot(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return Root(filepath.Clean(abs)), nil
}

// String returns the root directory.
func (r Root) String() string { return string(r) }

// Resolve joins p onto the root when p is relative and returns the absolute
// result. Absolute paths are accepted only when they already lie inside the
// root. When the target exists its symlinks are evaluated before the check.
func (r Root) Resolve(p string) (string, error) {
	if p == "" {
		return "", domain.ErrPathOutsideRoot.WithDetails("empty path")
	}

	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(string(r), filepath.FromSlash(p))
	}
	full = filepath.Clean(full)

	if !r.contains(full) {
		return "", domain.ErrPathOutsideRoot.WithDetails(p)
	}

	real, err := filepath.EvalSymlinks(full)
	switch {
	case err == nil:
		rootReal, rerr := filepath.EvalSymlinks(string(r))
		if rerr != nil {
			rootReal = string(r)
		}
		if !Root(rootReal).contains(real) {
			return "", domain.ErrPathOutsideRoot.WithDetails(p)
		}
		return full, nil
	case errors.Is(err, fs.ErrNotExist):
		return full, nil
	default:
		return "", err
	}
}

func (r Root) contains(p string) bool {
	rel, err := filepath.Rel(string(r), p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Package sandbox maps request paths onto a document root and refuses
// anything that would leave it or touch a hidden entry.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrForbidden = errors.New("path escapes document root or is hidden")

type Resolver struct {
	root string
}

func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", real)
	}
	return &Resolver{root: real}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the canonical filesystem path for a request path. The
// result is the root or lies beneath it, and no component below the root is
// hidden. A path that exists is checked again after following symlinks.
func (r *Resolver) Resolve(reqPath string) (string, error) {
	full := filepath.Join(r.root, "."+string(filepath.Separator)+filepath.FromSlash(reqPath))
	if err := r.Check(full); err != nil {
		return "", err
	}
	return full, nil
}

// Check applies the containment rules to an already joined path, such as an
// index file substituted for a directory.
func (r *Resolver) Check(full string) error {
	if err := r.contain(full); err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		// Missing entries are the caller's 404, not a sandbox question.
		return nil
	}
	return r.contain(real)
}

func (r *Resolver) contain(full string) error {
	rel, err := filepath.Rel(r.root, full)
	if err != nil {
		return ErrForbidden
	}
	if rel == "." {
		return nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return ErrForbidden
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if IsHidden(part) {
			return ErrForbidden
		}
	}
	return nil
}

func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Index returns the first of names that exists in dir as a regular file.
func Index(dir string, names []string) (string, bool) {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

package lbx

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// ErrTemplateNotFound is returned when no template directory exists for a
// hardware category.
var ErrTemplateNotFound = errors.New("label template not found")

//go:embed data
var embedded embed.FS

// Resolver locates the template directory of a hardware category.
// Roots are searched in order; the templates built into the binary are
// always searched last.
type Resolver struct {
	roots []fs.FS
}

// NewResolver creates a resolver searching dirs first, then the built-in
// templates.
func NewResolver(dirs ...string) *Resolver {
	r := &Resolver{}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		r.roots = append(r.roots, os.DirFS(dir))
	}
	builtin, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(fmt.Sprintf("lbx: embedded templates: %v", err))
	}
	r.roots = append(r.roots, builtin)
	return r
}

// NewResolverFS creates a resolver over the given roots only.
func NewResolverFS(roots ...fs.FS) *Resolver {
	return &Resolver{roots: roots}
}

// Lookup returns the template directory for hardware. If no root holds it,
// a directory named hardware relative to the working directory is used.
func (r *Resolver) Lookup(hardware string) (fs.FS, error) {
	if hardware == "" {
		return nil, fmt.Errorf("%w: empty hardware category", ErrTemplateNotFound)
	}

	if fs.ValidPath(hardware) {
		for _, root := range r.roots {
			info, err := fs.Stat(root, hardware)
			if err != nil || !info.IsDir() {
				continue
			}
			return fs.Sub(root, hardware)
		}
	}

	// Fall back to a directory relative to the working directory
	info, err := os.Stat(hardware)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, hardware)
	}
	return os.DirFS(hardware), nil
}

// Categories lists the hardware categories found in the resolver's roots.
func (r *Resolver) Categories() ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, root := range r.roots {
		entries, err := fs.ReadDir(root, ".")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true
			categories = append(categories, entry.Name())
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Package loader maps filesystem paths to loaded service modules and resolves
// typed entry points from them.
package loader

import (
	"context"
	"path/filepath"
	"strings"
)

// Module is a service module mapped into the process.
type Module interface {
	// Path returns the path the module was opened from.
	Path() string
	// Lookup resolves an entry point by exact name. Backends return the
	// service factory types for the names in service.EntryPoints.
	Lookup(name string) (any, error)
	// Close releases backend resources. Native modules stay mapped.
	Close(ctx context.Context) error
}

// Opener opens a module from a path. The loader calls it at most once per
// successful path.
type Opener interface {
	Open(ctx context.Context, path string) (Module, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Module, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, path string) (Module, error) {
	return f(ctx, path)
}

// ByExtension picks an opener from the path's extension and falls back to
// Default.
type ByExtension struct {
	Openers map[string]Opener
	Default Opener
}

// Open implements Opener.
func (b ByExtension) Open(ctx context.Context, path string) (Module, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if o, ok := b.Openers[ext]; ok {
		return o.Open(ctx, path)
	}
	return b.Default.Open(ctx, path)
}

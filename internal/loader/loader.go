// Package loader turns a compiled entrypoint artifact written to disk into a
// module exposing a fetch-capable handler.
package loader

import (
	"context"
	"errors"
)

// ErrSymbolNotFound is returned by Module.Lookup for unknown symbols.
var ErrSymbolNotFound = errors.New("loader: symbol not found")

// Module is a loaded entrypoint.
type Module interface {
	// Lookup returns the exported value registered under name.
	Lookup(name string) (any, error)
	// Close releases processes or handles owned by the module.
	Close() error
}

// Loader loads the module stored at path.
type Loader interface {
	Load(ctx context.Context, path string) (Module, error)
}

// StaticModule is a Module backed by a fixed symbol table. It is used for
// handlers linked into the current binary.
type StaticModule map[string]any

// Lookup implements Module.
func (m StaticModule) Lookup(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, ErrSymbolNotFound
	}
	return v, nil
}

// Close implements Module.
func (StaticModule) Close() error {
	return nil
}

// StaticLoader returns the same Module regardless of path.
type StaticLoader struct {
	Module Module
}

// Load implements Loader.
func (l StaticLoader) Load(ctx context.Context, _ string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Module == nil {
		return nil, errors.New("loader: static module is nil")
	}
	return l.Module, nil
}

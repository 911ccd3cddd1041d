package loader

import (
	"context"
	"fmt"
	"plugin"
	"strings"
)

// PluginLoader opens entrypoints built with -buildmode=plugin. The plugin
// must be compiled with the same toolchain and dependency versions as the
// host binary.
type PluginLoader struct{}

// Load implements Loader.
func (PluginLoader) Load(ctx context.Context, path string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	return &pluginModule{p: p}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m *pluginModule) Lookup(name string) (any, error) {
	sym, err := m.p.Lookup(name)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
		}
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	return sym, nil
}

// Close is a no-op: Go plugins cannot be unloaded.
func (m *pluginModule) Close() error {
	return nil
}

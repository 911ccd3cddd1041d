// Package pipeline runs bundle finalize plugins in priority order.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/bundle"
)

// DefaultPriority is the priority plugins run at unless they ask otherwise.
const DefaultPriority = 100

// Plugin post-processes the artifact set once the bundle is complete.
type Plugin interface {
	Name() string
	Priority() int
	FinalizeResources(ctx context.Context, set *bundle.Set) (*bundle.Set, error)
}

// Func adapts a function to a Plugin at DefaultPriority.
type Func struct {
	PluginName string
	Fn         func(ctx context.Context, set *bundle.Set) (*bundle.Set, error)
}

// Name implements Plugin.
func (f Func) Name() string { return f.PluginName }

// Priority implements Plugin.
func (Func) Priority() int { return DefaultPriority }

// FinalizeResources implements Plugin.
func (f Func) FinalizeResources(ctx context.Context, set *bundle.Set) (*bundle.Set, error) {
	return f.Fn(ctx, set)
}

// Host holds registered plugins. Higher priorities run first; plugins with
// equal priority run in registration order.
type Host struct {
	logger *zap.Logger

	mu      sync.Mutex
	plugins []Plugin
}

// NewHost returns an empty Host.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{logger: logger}
}

// Register adds plugins to the host.
func (h *Host) Register(plugins ...Plugin) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plugins = append(h.plugins, plugins...)
}

// Plugins returns the registered plugins in run order.
func (h *Host) Plugins() []Plugin {
	h.mu.Lock()
	out := make([]Plugin, len(h.plugins))
	copy(out, h.plugins)
	h.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// Finalize threads set through every plugin and returns the final set. The
// first plugin error stops the run.
func (h *Host) Finalize(ctx context.Context, set *bundle.Set) (*bundle.Set, error) {
	for _, p := range h.Plugins() {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		h.logger.Debug("running finalize plugin",
			zap.String("plugin", p.Name()),
			zap.Int("priority", p.Priority()),
		)
		next, err := p.FinalizeResources(ctx, set)
		if err != nil {
			return set, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		if next != nil {
			set = next
		}
	}
	return set, nil
}

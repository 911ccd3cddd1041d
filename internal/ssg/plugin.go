package ssg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/capture"
	"github.com/JakeFAU/staticgen/internal/crawler"
	"github.com/JakeFAU/staticgen/internal/metrics"
	"github.com/JakeFAU/staticgen/internal/origin"
	"github.com/JakeFAU/staticgen/internal/policy/ratelimit"
	"github.com/JakeFAU/staticgen/internal/workspace"
)

const (
	// Name identifies the plugin in the finalize pipeline.
	Name = "ssg"
	// Priority runs the plugin after default-priority plugins.
	Priority = 90
)

// State is a step of a single FinalizeResources call.
type State int

// Driver states, in order.
const (
	StateIdle State = iota
	StateLocatingEntrypoint
	StateWritingTempModule
	StateLoadingModule
	StateCrawling
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocatingEntrypoint:
		return "locating-entrypoint"
	case StateWritingTempModule:
		return "writing-temp-module"
	case StateLoadingModule:
		return "loading-module"
	case StateCrawling:
		return "crawling"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateError records the state a FinalizeResources call failed in.
type StateError struct {
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("ssg %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Crawler runs a crawl. *crawler.Engine satisfies it.
type Crawler interface {
	Run(ctx context.Context, baseURL string, opts crawler.Options) error
}

// Plugin is the SSG finalize hook.
type Plugin struct {
	opts    Options
	crawler Crawler
	logger  *zap.Logger
}

// PluginOption customizes a Plugin.
type PluginOption func(*Plugin)

// WithCrawler replaces the colly-backed crawl engine.
func WithCrawler(c Crawler) PluginOption {
	return func(p *Plugin) {
		if c != nil {
			p.crawler = c
		}
	}
}

// New returns a Plugin with opts, filling unset fields with defaults.
func New(opts Options, logger *zap.Logger, pluginOpts ...PluginOption) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Plugin{
		opts:    opts.withDefaults(),
		crawler: crawler.NewEngine(logger.Named("crawler")),
		logger:  logger,
	}
	for _, opt := range pluginOpts {
		opt(p)
	}
	return p
}

// Name implements pipeline.Plugin.
func (p *Plugin) Name() string { return Name }

// Priority implements pipeline.Plugin.
func (p *Plugin) Priority() int { return Priority }

// FinalizeResources generates static pages from the entrypoint artifact and
// adds them to set. When no entrypoint matches, set is returned unchanged.
// Artifacts captured before a failure stay in set.
func (p *Plugin) FinalizeResources(ctx context.Context, set *bundle.Set) (_ *bundle.Set, err error) {
	start := time.Now()
	result := "skipped"
	defer func() {
		if err != nil {
			result = "error"
		}
		metrics.ObserveGenerate(result, time.Since(start))
	}()

	state := StateIdle
	enter := func(next State) {
		p.logger.Debug("ssg state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}
	fail := func(err error) error {
		return &StateError{State: state, Err: err}
	}

	enter(StateLocatingEntrypoint)
	entry, ok := set.Find(p.opts.Entrypoint)
	if !ok {
		p.logger.Info("no entrypoint matched, skipping static generation")
		enter(StateDone)
		return set, nil
	}
	logger := p.logger.With(zap.String("entrypoint", entry.Name))

	ws, err := workspace.New(p.opts.WorkspaceDir, workspace.WithLogger(logger))
	if err != nil {
		return set, fail(err)
	}
	defer ws.Release()
	logger.Debug("workspace ready", zap.String("root", ws.Root()))

	enter(StateWritingTempModule)
	modulePath, err := ws.Create(p.opts.ModuleName)
	if err != nil {
		return set, fail(err)
	}
	// #nosec G306 -- the module must be executable for the exec loader.
	if err := os.WriteFile(modulePath, entry.Bytes, 0o700); err != nil {
		return set, fail(fmt.Errorf("write module: %w", err))
	}

	enter(StateLoadingModule)
	mod, err := p.opts.Loader.Load(ctx, modulePath)
	if err != nil {
		return set, fail(fmt.Errorf("load module: %w", err))
	}
	defer func() {
		if closeErr := mod.Close(); closeErr != nil {
			logger.Debug("module close failed", zap.Error(closeErr))
		}
	}()
	fetch, err := p.opts.GetFetch(mod, set)
	if err != nil {
		return set, fail(err)
	}
	if fetch == nil {
		return set, fail(ErrNoFetch)
	}

	enter(StateCrawling)
	if p.opts.RequestsPerSecond > 0 {
		fetch = ratelimit.New(ratelimit.Config{RPS: p.opts.RequestsPerSecond, Burst: p.opts.Burst}).Transport(fetch)
	}
	resolver, err := origin.New(origin.Config{
		PublicDir: p.opts.PublicDir,
		Artifacts: set,
		Types:     p.opts.ContentTypes,
		Next:      fetch,
		Logger:    logger.Named("origin"),
	})
	if err != nil {
		return set, fail(err)
	}
	captureOpts := []capture.Option{capture.WithLogger(logger.Named("capture"))}
	if p.opts.CaptureContentType {
		captureOpts = append(captureOpts, capture.WithContentTypes(p.opts.ContentTypes))
	}
	err = p.crawler.Run(ctx, p.opts.BaseURL, crawler.Options{
		EntryPaths:     p.opts.EntryPaths,
		Transport:      resolver,
		Destination:    capture.NewFactory(set, entry.Origin, captureOpts...),
		Concurrency:    p.opts.Concurrency,
		FixExtension:   p.opts.FixExtension,
		ScrapeLinks:    p.opts.ScrapeLinks,
		MaxBodyBytes:   p.opts.MaxBodyBytes,
		RequestTimeout: p.opts.RequestTimeout,
		UserAgent:      p.opts.UserAgent,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("static generation cancelled")
		}
		return set, fail(fmt.Errorf("crawl: %w", err))
	}

	enter(StateFinalizing)
	if p.opts.RemoveEntrypoint {
		set.Delete(entry.Name)
	}

	enter(StateDone)
	result = "success"
	logger.Info("static generation complete", zap.Int("artifacts", set.Len()))
	return set, nil
}

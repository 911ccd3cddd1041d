package ssg

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/config"
	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/crawler"
	"github.com/JakeFAU/staticgen/internal/loader"
)

// ErrNoFetch is returned when the loaded module does not expose a usable
// fetch handler.
var ErrNoFetch = errors.New("ssg: module exposes no fetch handler")

// DefaultHandlerSymbol is the module symbol DefaultGetFetch looks up.
const DefaultHandlerSymbol = "Handler"

// Matcher selects the entrypoint artifact.
type Matcher func(bundle.Artifact) bool

// DefaultMatcher matches any entry-flagged artifact.
func DefaultMatcher(a bundle.Artifact) bool {
	return a.Entry
}

// MatchName matches the entry-flagged artifact called name. An empty name
// behaves like DefaultMatcher.
func MatchName(name string) Matcher {
	if name == "" {
		return DefaultMatcher
	}
	return func(a bundle.Artifact) bool {
		return a.Entry && a.Name == name
	}
}

// GetFetchFunc extracts the fetch transport from a loaded module. The set is
// the shared artifact set, available for wrapping.
type GetFetchFunc func(mod loader.Module, set *bundle.Set) (http.RoundTripper, error)

// DefaultGetFetch looks up DefaultHandlerSymbol.
var DefaultGetFetch = SymbolFetch(DefaultHandlerSymbol)

// SymbolFetch returns a GetFetchFunc that looks up symbol and adapts it with
// FetchFromSymbol.
func SymbolFetch(symbol string) GetFetchFunc {
	return func(mod loader.Module, _ *bundle.Set) (http.RoundTripper, error) {
		sym, err := mod.Lookup(symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoFetch, err)
		}
		return FetchFromSymbol(sym)
	}
}

// FetchFromSymbol adapts a module symbol to an http.RoundTripper. Supported
// shapes are http.RoundTripper, http.Handler, func(http.ResponseWriter,
// *http.Request), and pointers to any of them, which is how plugin variables
// are exposed.
func FetchFromSymbol(sym any) (http.RoundTripper, error) {
	switch v := sym.(type) {
	case nil:
		return nil, ErrNoFetch
	case http.RoundTripper:
		return v, nil
	case *http.RoundTripper:
		if v == nil || *v == nil {
			return nil, ErrNoFetch
		}
		return *v, nil
	case http.Handler:
		return loader.HandlerTransport(v), nil
	case *http.Handler:
		if v == nil || *v == nil {
			return nil, ErrNoFetch
		}
		return loader.HandlerTransport(*v), nil
	case func(http.ResponseWriter, *http.Request):
		if v == nil {
			return nil, ErrNoFetch
		}
		return loader.HandlerTransport(http.HandlerFunc(v)), nil
	case *func(http.ResponseWriter, *http.Request):
		if v == nil || *v == nil {
			return nil, ErrNoFetch
		}
		return loader.HandlerTransport(http.HandlerFunc(*v)), nil
	case *http.HandlerFunc:
		if v == nil || *v == nil {
			return nil, ErrNoFetch
		}
		return loader.HandlerTransport(*v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported symbol type %T", ErrNoFetch, sym)
	}
}

// Options configures the SSG plugin.
type Options struct {
	// Entrypoint selects the entry artifact. Nil uses DefaultMatcher.
	Entrypoint Matcher
	// RemoveEntrypoint drops the entry artifact from the set after the crawl.
	RemoveEntrypoint bool
	// BaseURL is passed to the handler and scopes discovered links.
	BaseURL string
	// EntryPaths are crawled in addition to the base URL path.
	EntryPaths []string
	// Concurrency bounds in-flight fetches.
	Concurrency int
	// PublicDir is read before the artifact set; empty disables it.
	PublicDir string
	// GetFetch extracts the fetch transport. Nil uses DefaultGetFetch.
	GetFetch GetFetchFunc
	// FixExtension rewrites stored pathnames. Nil maps text/html to .html.
	FixExtension crawler.ExtensionFixer
	// ContentTypes annotates locally resolved responses.
	ContentTypes *contenttype.Table
	// ScrapeLinks maps media types to link scrapers. Nil scrapes html and css.
	ScrapeLinks map[string]crawler.LinkScraper
	// CaptureContentType stores a ContentType on captured artifacts.
	CaptureContentType bool
	// WorkspaceDir roots the temporary module files.
	WorkspaceDir string
	// ModuleName is the logical file name the entry bytes are written to.
	ModuleName string
	// Loader loads the written module. Nil uses loader.PluginLoader.
	Loader loader.Loader
	// MaxBodyBytes truncates response bodies; zero means unlimited.
	MaxBodyBytes int
	// RequestTimeout bounds each fetch.
	RequestTimeout time.Duration
	// UserAgent overrides the crawler user agent.
	UserAgent string
	// RequestsPerSecond throttles calls into the server handler; zero disables it.
	// Public files and bundle artifacts are never throttled.
	RequestsPerSecond float64
	Burst             int
}

func (o Options) withDefaults() Options {
	if o.Entrypoint == nil {
		o.Entrypoint = DefaultMatcher
	}
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost/"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = crawler.DefaultConcurrency
	}
	if o.GetFetch == nil {
		o.GetFetch = DefaultGetFetch
	}
	if o.FixExtension == nil {
		o.FixExtension = crawler.FixExtensionFrom(contenttype.New(crawler.DefaultFixExtension))
	}
	if o.ContentTypes == nil {
		o.ContentTypes = contenttype.New(contenttype.Merge(contenttype.DefaultWebTypes, crawler.DefaultFixExtension))
	}
	if o.ScrapeLinks == nil {
		o.ScrapeLinks = crawler.DefaultScrapers()
	}
	if o.WorkspaceDir == "" {
		o.WorkspaceDir = filepath.Join(".cache", "staticgen", "ssg")
	}
	if o.ModuleName == "" {
		o.ModuleName = "app.so"
	}
	if o.Loader == nil {
		o.Loader = loader.PluginLoader{}
	}
	return o
}

// OptionsFromConfig builds Options from loaded configuration. The public dir
// is resolved to an absolute path against the working directory.
func OptionsFromConfig(cfg config.SSGConfig) (Options, error) {
	fix := cfg.FixExtension
	if len(fix) == 0 {
		fix = crawler.DefaultFixExtension
	}
	serveTypes := cfg.ContentTypes
	if len(serveTypes) == 0 {
		serveTypes = contenttype.DefaultWebTypes
	}

	scrapers, err := crawler.ScrapeLinksFor(cfg.ScrapeLinks)
	if err != nil {
		return Options{}, fmt.Errorf("ssg.scrapelinks: %w", err)
	}

	publicDir := cfg.PublicDir
	if publicDir != "" {
		publicDir, err = filepath.Abs(publicDir)
		if err != nil {
			return Options{}, fmt.Errorf("resolve public dir: %w", err)
		}
	}

	var ld loader.Loader
	switch cfg.Loader {
	case "", "plugin":
		ld = loader.PluginLoader{}
	case "exec":
		ld = loader.ExecLoader{StartTimeout: cfg.ModuleStartTimeout}
	default:
		return Options{}, fmt.Errorf("unknown loader %q", cfg.Loader)
	}

	symbol := cfg.HandlerSymbol
	if symbol == "" {
		symbol = DefaultHandlerSymbol
	}

	return Options{
		Entrypoint:         MatchName(cfg.Entrypoint),
		RemoveEntrypoint:   cfg.RemoveEntrypoint,
		BaseURL:            cfg.BaseURL,
		EntryPaths:         cfg.EntryPaths,
		Concurrency:        cfg.Concurrency,
		PublicDir:          publicDir,
		GetFetch:           SymbolFetch(symbol),
		FixExtension:       crawler.FixExtensionFrom(contenttype.New(fix)),
		ContentTypes:       contenttype.New(contenttype.Merge(serveTypes, fix)),
		ScrapeLinks:        scrapers,
		CaptureContentType: cfg.CaptureContentType,
		WorkspaceDir:       cfg.WorkspaceDir,
		ModuleName:         cfg.ModuleName,
		Loader:             ld,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RequestTimeout:     cfg.RequestTimeout,
		UserAgent:          cfg.UserAgent,
		RequestsPerSecond:  cfg.RequestsPerSecond,
		Burst:              cfg.Burst,
	}, nil
}

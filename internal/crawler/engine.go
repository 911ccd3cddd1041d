package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/metrics"
)

// DefaultConcurrency bounds in-flight fetches when Options.Concurrency is unset.
const DefaultConcurrency = 2

// Destination receives every successfully fetched response body.
type Destination interface {
	CreateWritableStream(ctx context.Context, pathname string) (io.WriteCloser, error)
}

// Options configures a single crawl.
type Options struct {
	// EntryPaths are visited in addition to the base URL path.
	EntryPaths []string
	// Transport performs every fetch. Required.
	Transport http.RoundTripper
	// Destination stores responses. Required.
	Destination Destination
	// Concurrency bounds in-flight fetches.
	Concurrency int
	// FixExtension rewrites the stored pathname from the response content type.
	// Nil uses DefaultFixExtension.
	FixExtension ExtensionFixer
	// ScrapeLinks maps media types to link scrapers. Nil uses DefaultScrapers.
	ScrapeLinks map[string]LinkScraper
	// MaxBodyBytes truncates response bodies; zero means unlimited.
	MaxBodyBytes int
	// RequestTimeout bounds each fetch; zero keeps the collector default.
	RequestTimeout time.Duration
	// UserAgent overrides the collector user agent when set.
	UserAgent string
}

// Engine runs crawls.
type Engine struct {
	logger *zap.Logger
}

// NewEngine returns an Engine logging to logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Run crawls from baseURL and every entry path, following in-scope links
// found by the configured scrapers. Responses with a 2xx status are written to
// the destination; 4xx and 5xx responses are logged and skipped. Transport and
// destination errors are fatal: remaining requests are aborted and the first
// such error is returned.
func (e *Engine) Run(ctx context.Context, baseURL string, opts Options) error {
	if opts.Transport == nil {
		return errors.New("crawler: transport is required")
	}
	if opts.Destination == nil {
		return errors.New("crawler: destination is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if base.Path == "" {
		base.Path = "/"
	}

	r := &run{
		ctx:    ctx,
		base:   base,
		opts:   withDefaults(opts),
		logger: e.logger.With(zap.String("base_url", base.String())),
		raw:    newRawBodies(opts.Transport),
		stored: make(map[string]string),
	}
	collector, err := r.collector()
	if err != nil {
		return err
	}

	for _, target := range r.entryURLs() {
		if err := collector.Visit(target); err != nil {
			if visited, _ := collector.HasVisited(target); visited {
				continue
			}
			r.fail(fmt.Errorf("visit %s: %w", target, err))
		}
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return r.err()
}

func withDefaults(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.FixExtension == nil {
		opts.FixExtension = FixExtensionFrom(contenttype.New(DefaultFixExtension))
	}
	if opts.ScrapeLinks == nil {
		opts.ScrapeLinks = DefaultScrapers()
	}
	return opts
}

type run struct {
	ctx    context.Context
	base   *url.URL
	opts   Options
	logger *zap.Logger
	raw    *rawBodies

	mu    sync.Mutex
	fatal error
	// stored maps captured pathnames to the URL that produced them.
	stored map[string]string
}

func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fatal == nil {
		r.fatal = err
		r.logger.Error("crawl aborted", zap.Error(err))
	}
}

func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// claim records that target was stored under pathname. It reports the URL
// that claimed pathname earlier in this run, if any.
func (r *run) claim(pathname, target string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, dup := r.stored[pathname]
	r.stored[pathname] = target
	return prev, dup
}

func (r *run) collector() (*colly.Collector, error) {
	options := []colly.CollectorOption{
		colly.Async(true),
		colly.StdlibContext(r.ctx),
		colly.AllowedDomains(r.base.Hostname()),
	}
	if r.opts.UserAgent != "" {
		options = append(options, colly.UserAgent(r.opts.UserAgent))
	}
	c := colly.NewCollector(options...)
	c.AllowURLRevisit = false
	c.MaxBodySize = r.opts.MaxBodyBytes
	c.WithTransport(r.raw)
	if r.opts.RequestTimeout > 0 {
		c.SetRequestTimeout(r.opts.RequestTimeout)
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: r.opts.Concurrency,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}

	c.OnRequest(r.handleRequest)
	c.OnResponse(r.handleResponse)
	c.OnError(r.handleError)
	return c, nil
}

func (r *run) entryURLs() []string {
	seen := make(map[string]struct{})
	out := []string{r.base.String()}
	seen[r.base.String()] = struct{}{}
	for _, p := range r.opts.EntryPaths {
		ref, err := url.Parse(p)
		if err != nil {
			r.logger.Warn("skipping invalid entry path", zap.String("path", p), zap.Error(err))
			continue
		}
		target := r.base.ResolveReference(ref).String()
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func (r *run) handleRequest(req *colly.Request) {
	if r.ctx.Err() != nil || r.err() != nil {
		req.Abort()
	}
}

func (r *run) handleResponse(resp *colly.Response) {
	if r.err() != nil || r.ctx.Err() != nil {
		return
	}
	contentType := ""
	if resp.Headers != nil {
		contentType = resp.Headers.Get("Content-Type")
	}
	body := r.raw.take(resp.Request.URL.String(), resp.Body)
	if err := r.store(resp.Request.URL, contentType, body); err != nil {
		metrics.ObserveCrawlFailure("destination")
		r.fail(err)
		return
	}
	r.follow(resp, contentType)
}

func (r *run) store(u *url.URL, contentType string, body []byte) error {
	pathname := u.Path
	if pathname == "" {
		pathname = "/"
	}
	pathname = r.opts.FixExtension(pathname, contentType)
	if prev, dup := r.claim(pathname, u.String()); dup {
		r.logger.Warn("pathname already captured, overwriting",
			zap.String("pathname", pathname),
			zap.String("previous_url", prev),
			zap.String("url", u.String()),
		)
	}

	w, err := r.opts.Destination.CreateWritableStream(r.ctx, pathname)
	if err != nil {
		return fmt.Errorf("open destination %s: %w", pathname, err)
	}
	if _, err := w.Write(body); err != nil {
		if a, ok := w.(interface{ Abort(error) }); ok {
			a.Abort(err)
		}
		return fmt.Errorf("write %s: %w", pathname, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", pathname, err)
	}
	r.logger.Debug("stored response",
		zap.String("url", u.String()),
		zap.String("pathname", pathname),
		zap.Int("bytes", len(body)),
	)
	return nil
}

func (r *run) follow(resp *colly.Response, contentType string) {
	scraper, ok := r.opts.ScrapeLinks[contenttype.MediaType(contentType)]
	if !ok {
		return
	}
	links, err := scraper(resp.Body)
	if err != nil {
		r.logger.Warn("link scrape failed", zap.String("url", resp.Request.URL.String()), zap.Error(err))
		return
	}
	for _, link := range links {
		abs := resp.Request.AbsoluteURL(link)
		if abs == "" {
			continue
		}
		normalized, err := NormalizeURL(abs)
		if err != nil {
			continue
		}
		u, err := url.Parse(normalized)
		if err != nil || !inScope(r.base, u) {
			continue
		}
		if err := resp.Request.Visit(normalized); err != nil {
			r.logger.Debug("link not followed", zap.String("url", normalized), zap.Error(err))
		}
	}
}

func (r *run) handleError(resp *colly.Response, err error) {
	target := ""
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.String()
	}
	if target != "" {
		r.raw.discard(target)
	}
	if resp != nil && resp.StatusCode > 0 {
		metrics.ObserveCrawlFailure("status")
		r.logger.Warn("skipping response",
			zap.String("url", target),
			zap.Int("status_code", resp.StatusCode),
			zap.Error(err),
		)
		return
	}
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return
	}
	metrics.ObserveCrawlFailure("transport")
	r.fail(fmt.Errorf("fetch %s: %w", target, err))
}

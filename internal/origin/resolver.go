// Package origin resolves crawl fetches against a virtual origin made of the
// on-disk public directory, the in-memory bundle artifacts, and the live
// handler, in that order.
package origin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/metrics"
)

// Config wires the sources a Resolver consults.
type Config struct {
	// PublicDir is the public assets directory; empty disables it.
	PublicDir string
	// Artifacts is the shared bundle artifact set.
	Artifacts *bundle.Set
	// Types annotates locally resolved responses with a Content-Type.
	Types *contenttype.Table
	// Next is the live handler transport used as the last resort.
	Next http.RoundTripper
	// Logger is optional.
	Logger *zap.Logger
}

// Resolver is an http.RoundTripper that answers eligible GET requests from
// local sources before falling back to the wrapped transport.
type Resolver struct {
	publicDir string
	artifacts *bundle.Set
	types     *contenttype.Table
	next      http.RoundTripper
	logger    *zap.Logger
}

// New builds a Resolver. Next is required.
func New(cfg Config) (*Resolver, error) {
	if cfg.Next == nil {
		return nil, errors.New("origin: next transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	artifacts := cfg.Artifacts
	if artifacts == nil {
		artifacts = bundle.NewSet()
	}
	return &Resolver{
		publicDir: cfg.PublicDir,
		artifacts: artifacts,
		types:     cfg.Types,
		next:      cfg.Next,
		logger:    logger,
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (r *Resolver) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || strings.HasSuffix(req.URL.Path, "/") {
		metrics.ObserveResolution(metrics.SourcePassthrough)
		return r.next.RoundTrip(req)
	}
	key := strings.TrimPrefix(req.URL.Path, "/")

	if r.publicDir != "" && key != "" {
		resp, err := r.fromPublicDir(req, key)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			metrics.ObserveResolution(metrics.SourcePublic)
			r.logger.Debug("resolved from public dir", zap.String("path", key))
			return resp, nil
		}
	}

	if a, ok := r.artifacts.Get(key); ok {
		metrics.ObserveResolution(metrics.SourceArtifact)
		r.logger.Debug("resolved from bundle artifact", zap.String("path", key))
		return r.fromArtifact(req, a), nil
	}

	metrics.ObserveResolution(metrics.SourceHandler)
	return r.next.RoundTrip(req)
}

// fromPublicDir returns nil, nil when the key does not name a file in the
// public directory.
func (r *Resolver) fromPublicDir(req *http.Request, key string) (*http.Response, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return nil, nil
	}
	full := filepath.Join(r.publicDir, rel)
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat public asset %s: %w", key, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	// #nosec G304 -- full is confined to the public dir by the IsLocal check.
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open public asset %s: %w", key, err)
	}

	header := make(http.Header)
	header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if ct, ok := r.types.ContentType(key); ok {
		header.Set("Content-Type", ct)
	}
	return newResponse(req, header, f, info.Size()), nil
}

func (r *Resolver) fromArtifact(req *http.Request, a bundle.Artifact) *http.Response {
	header := make(http.Header)
	header.Set("Content-Length", strconv.Itoa(len(a.Bytes)))
	switch {
	case a.ContentType != "":
		header.Set("Content-Type", a.ContentType)
	default:
		if ct, ok := r.types.ContentType(a.Name); ok {
			header.Set("Content-Type", ct)
		}
	}
	body := io.NopCloser(bytes.NewReader(a.Bytes))
	return newResponse(req, header, body, int64(len(a.Bytes)))
}

func newResponse(req *http.Request, header http.Header, body io.ReadCloser, length int64) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: length,
		Request:       req,
	}
}

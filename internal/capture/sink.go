// Package capture turns crawled response bodies into bundle artifacts.
package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/metrics"
)

// ErrClosed is returned by writes to a sink that was closed or aborted.
var ErrClosed = errors.New("capture: sink closed")

// Factory creates sinks that insert into a shared artifact set.
type Factory struct {
	set    *bundle.Set
	origin string
	types  *contenttype.Table
	logger *zap.Logger
}

// Option customizes a Factory.
type Option func(*Factory)

// WithLogger sets the factory logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithContentTypes enables capture-time typing: artifacts whose name maps to
// a content type in table are inserted with ContentType set.
func WithContentTypes(table *contenttype.Table) Option {
	return func(f *Factory) {
		f.types = table
	}
}

// NewFactory returns a Factory inserting into set, recording origin on every
// captured artifact.
func NewFactory(set *bundle.Set, origin string, opts ...Option) *Factory {
	f := &Factory{set: set, origin: origin, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateWritableStream returns a *Sink for pathname. The artifact is inserted
// when the sink is closed.
func (f *Factory) CreateWritableStream(ctx context.Context, pathname string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.NewSink(pathname), nil
}

// NewSink returns a sink for pathname.
func (f *Factory) NewSink(pathname string) *Sink {
	return &Sink{factory: f, pathname: pathname}
}

// Sink buffers written chunks in order until it is closed or aborted.
type Sink struct {
	factory  *Factory
	pathname string

	mu     sync.Mutex
	chunks [][]byte
	size   int
	closed bool
}

// Write copies p and appends it to the buffered chunks.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	s.chunks = append(s.chunks, chunk)
	s.size += len(p)
	return len(p), nil
}

// Close inserts the concatenated chunks into the set. Closing twice is a
// no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var buf bytes.Buffer
	buf.Grow(s.size)
	for _, c := range s.chunks {
		buf.Write(c)
	}
	s.chunks = nil
	s.mu.Unlock()

	name := strings.TrimPrefix(s.pathname, "/")
	artifact := bundle.Artifact{
		Name:   name,
		Bytes:  buf.Bytes(),
		Kind:   bundle.KindFromName(name),
		Origin: s.factory.origin,
	}
	if s.factory.types != nil {
		if ct, ok := s.factory.types.ContentType(name); ok {
			artifact.ContentType = ct
		}
	}
	s.factory.set.Put(artifact)
	metrics.ObserveCapture(artifact.Size())
	s.factory.logger.Debug("captured artifact",
		zap.String("name", name),
		zap.Int("bytes", artifact.Size()),
	)
	return nil
}

// Abort discards buffered chunks without inserting anything.
func (s *Sink) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.chunks = nil
	s.factory.logger.Debug("capture aborted",
		zap.String("pathname", s.pathname),
		zap.Error(err),
	)
}

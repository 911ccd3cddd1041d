// Package emit writes unemitted bundle artifacts to a blob store, optionally
// alongside precompressed variants, and records a build manifest.
package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/metrics"
	"github.com/JakeFAU/staticgen/internal/storage"
)

// Supported precompression encodings.
const (
	EncodingGzip = "gzip"
	EncodingZstd = "zstd"
)

var encodingSuffix = map[string]string{
	EncodingGzip: ".gz",
	EncodingZstd: ".zst",
}

// compressibleKinds lists artifact kinds worth precompressing.
var compressibleKinds = map[string]bool{
	"html": true, "htm": true, "css": true, "js": true, "mjs": true,
	"json": true, "xml": true, "svg": true, "txt": true, "map": true,
	"webmanifest": true, "wasm": true,
}

// Clock supplies manifest timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies build run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher digests artifact content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Config configures an Emitter.
type Config struct {
	Store  storage.BlobStore
	Types  *contenttype.Table
	Hasher Hasher
	Clock  Clock
	IDs    IDGenerator
	Logger *zap.Logger
	// Precompress lists encodings written next to compressible artifacts.
	Precompress []string
	// MinCompressBytes skips precompression for smaller artifacts.
	MinCompressBytes int
	// Manifest names the manifest object; empty disables it.
	Manifest string
	// Parallelism bounds concurrent uploads.
	Parallelism int
}

// Entry describes one emitted artifact.
type Entry struct {
	Name        string   `json:"name"`
	Size        int      `json:"size"`
	Kind        string   `json:"kind,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Origin      string   `json:"origin,omitempty"`
	Digest      string   `json:"blake3"`
	URI         string   `json:"uri"`
	Encodings   []string `json:"encodings,omitempty"`
}

// Manifest summarizes a single emission.
type Manifest struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Artifacts   []Entry   `json:"artifacts"`
	URI         string    `json:"-"`
}

// Emitter writes artifacts to a blob store.
type Emitter struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and returns an Emitter.
func New(cfg Config) (*Emitter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("emit: blob store is required")
	}
	if cfg.Hasher == nil || cfg.Clock == nil || cfg.IDs == nil {
		return nil, fmt.Errorf("emit: hasher, clock and id generator are required")
	}
	for _, enc := range cfg.Precompress {
		if _, ok := encodingSuffix[enc]; !ok {
			return nil, fmt.Errorf("emit: unsupported encoding %q", enc)
		}
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{cfg: cfg, logger: logger}, nil
}

// Emit writes every artifact in set that has not been emitted yet, marks it
// emitted, and writes the manifest when configured.
func (e *Emitter) Emit(ctx context.Context, set *bundle.Set) (Manifest, error) {
	runID, err := e.cfg.IDs.NewID()
	if err != nil {
		return Manifest{}, fmt.Errorf("run id: %w", err)
	}
	manifest := Manifest{RunID: runID, GeneratedAt: e.cfg.Clock.Now()}

	var (
		mu      sync.Mutex
		entries []Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	set.Each(func(a bundle.Artifact) bool {
		if a.Emitted {
			return true
		}
		g.Go(func() error {
			entry, err := e.emitOne(gctx, a)
			if err != nil {
				return err
			}
			set.MarkEmitted(a.Name)
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
		return gctx.Err() == nil
	})
	if err := g.Wait(); err != nil {
		return Manifest{}, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	manifest.Artifacts = entries

	if e.cfg.Manifest != "" {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return Manifest{}, fmt.Errorf("marshal manifest: %w", err)
		}
		uri, err := e.cfg.Store.PutObject(ctx, e.cfg.Manifest, "application/json", bytes.NewReader(data))
		if err != nil {
			return Manifest{}, fmt.Errorf("write manifest: %w", err)
		}
		manifest.URI = uri
	}
	e.logger.Info("artifacts emitted",
		zap.String("run_id", runID),
		zap.Int("artifacts", len(entries)),
	)
	return manifest, nil
}

func (e *Emitter) emitOne(ctx context.Context, a bundle.Artifact) (Entry, error) {
	contentType := a.ContentType
	if contentType == "" {
		contentType, _ = e.cfg.Types.ContentType(a.Name)
	}
	digest, err := e.cfg.Hasher.Hash(a.Bytes)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", a.Name, err)
	}
	uri, err := e.cfg.Store.PutObject(ctx, a.Name, contentType, bytes.NewReader(a.Bytes))
	if err != nil {
		return Entry{}, fmt.Errorf("put %s: %w", a.Name, err)
	}
	metrics.ObserveEmit(a.Size())

	entry := Entry{
		Name:        a.Name,
		Size:        a.Size(),
		Kind:        a.Kind,
		ContentType: contentType,
		Origin:      a.Origin,
		Digest:      digest,
		URI:         uri,
	}
	if !e.shouldCompress(a) {
		return entry, nil
	}
	for _, enc := range e.cfg.Precompress {
		var buf bytes.Buffer
		if err := compress(&buf, enc, a.Bytes); err != nil {
			return Entry{}, fmt.Errorf("%s %s: %w", enc, a.Name, err)
		}
		if buf.Len() >= a.Size() {
			continue
		}
		if err := e.putVariant(ctx, a.Name+encodingSuffix[enc], contentType, enc, &buf); err != nil {
			return Entry{}, fmt.Errorf("put %s %s: %w", enc, a.Name, err)
		}
		entry.Encodings = append(entry.Encodings, enc)
	}
	return entry, nil
}

func (e *Emitter) putVariant(ctx context.Context, name, contentType, encoding string, data io.Reader) error {
	var err error
	if enc, ok := e.cfg.Store.(storage.EncodedBlobStore); ok {
		_, err = enc.PutEncodedObject(ctx, name, contentType, encoding, data)
	} else {
		_, err = e.cfg.Store.PutObject(ctx, name, contentType, data)
	}
	return err
}

func (e *Emitter) shouldCompress(a bundle.Artifact) bool {
	return len(e.cfg.Precompress) > 0 && a.Size() >= e.cfg.MinCompressBytes && compressibleKinds[a.Kind]
}

func compress(w io.Writer, encoding string, data []byte) error {
	var (
		enc io.WriteCloser
		err error
	)
	switch encoding {
	case EncodingGzip:
		enc, err = gzip.NewWriterLevel(w, gzip.BestCompression)
	case EncodingZstd:
		enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	default:
		err = fmt.Errorf("unsupported encoding %q", encoding)
	}
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

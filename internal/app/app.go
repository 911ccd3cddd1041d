// Package app initializes and holds long-lived services, acting as the
// dependency container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/clock/system"
	"github.com/JakeFAU/staticgen/internal/config"
	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/crawler"
	"github.com/JakeFAU/staticgen/internal/emit"
	"github.com/JakeFAU/staticgen/internal/hash/blake3"
	"github.com/JakeFAU/staticgen/internal/id/uuid"
	"github.com/JakeFAU/staticgen/internal/loader"
	"github.com/JakeFAU/staticgen/internal/logging"
	"github.com/JakeFAU/staticgen/internal/pipeline"
	memorypub "github.com/JakeFAU/staticgen/internal/publisher/memory"
	pubsubpub "github.com/JakeFAU/staticgen/internal/publisher/pubsub"
	"github.com/JakeFAU/staticgen/internal/ssg"
	"github.com/JakeFAU/staticgen/internal/storage"
	"github.com/JakeFAU/staticgen/internal/storage/gcs"
	"github.com/JakeFAU/staticgen/internal/storage/local"
	"github.com/JakeFAU/staticgen/internal/storage/memory"
)

// NotificationTopic is the event name attached to build notifications.
const NotificationTopic = "staticgen.build"

// Publisher sends build notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BuildNotice is the payload published after a successful build.
type BuildNotice struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Artifacts   int       `json:"artifacts"`
	ManifestURI string    `json:"manifest_uri,omitempty"`
}

// App holds the shared services for one CLI invocation.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     storage.BlobStore
	Publisher Publisher
	// Plugins run alongside the SSG plugin according to their priority.
	Plugins []pipeline.Plugin
	// Loader overrides the configured module loader when set.
	Loader loader.Loader

	closers []func() error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.Logger
}

// NewApp builds the services selected by cfg.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Config: cfg, Logger: logger}

	switch cfg.Output.Provider {
	case "local":
		a.Store, err = local.New(local.Config{BaseDir: cfg.Output.Dir})
	case "memory":
		a.Store = memory.NewBlobStore()
	case "gcs":
		var client *gcstorage.Client
		client, err = gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Store, err = gcs.New(client, gcs.Config{
			Bucket:       cfg.Output.GCSBucket,
			Prefix:       cfg.Output.Prefix,
			CacheControl: cfg.Output.CacheControl,
		})
	default:
		err = fmt.Errorf("unknown output provider: %s", cfg.Output.Provider)
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init output store: %w", err)
	}

	if cfg.PubSub.TopicName != "" {
		pub, client, err := pubsubpub.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pub.Stop()
			return client.Close()
		})
		a.Publisher = pub
	} else {
		a.Publisher = memorypub.New()
	}

	logger.Info("application services initialized",
		zap.String("output_provider", cfg.Output.Provider),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)
	return a, nil
}

// Generate loads the bundle, runs the finalize pipeline, emits the result,
// and publishes a build notice.
func (a *App) Generate(ctx context.Context) (emit.Manifest, error) {
	cfg := a.Config
	entries := cfg.Bundle.Entries
	if len(entries) == 0 && cfg.SSG.Entrypoint != "" {
		entries = []string{cfg.SSG.Entrypoint}
	}
	set, err := bundle.LoadDir(cfg.Bundle.Dir, entries)
	if err != nil {
		return emit.Manifest{}, err
	}
	a.Logger.Info("bundle loaded", zap.String("dir", cfg.Bundle.Dir), zap.Int("artifacts", set.Len()))

	opts, err := ssg.OptionsFromConfig(cfg.SSG)
	if err != nil {
		return emit.Manifest{}, err
	}
	if el, ok := opts.Loader.(loader.ExecLoader); ok {
		el.Logger = a.Logger.Named("loader")
		opts.Loader = el
	}
	if a.Loader != nil {
		opts.Loader = a.Loader
	}

	host := pipeline.NewHost(a.Logger.Named("pipeline"))
	host.Register(a.Plugins...)
	host.Register(ssg.New(opts, a.Logger.Named("ssg")))
	set, err = host.Finalize(ctx, set)
	if err != nil {
		return emit.Manifest{}, err
	}

	types := cfg.SSG.ContentTypes
	if len(types) == 0 {
		types = contenttype.DefaultWebTypes
	}
	fix := cfg.SSG.FixExtension
	if len(fix) == 0 {
		fix = crawler.DefaultFixExtension
	}
	clock, err := system.FromEnv()
	if err != nil {
		return emit.Manifest{}, err
	}
	emitter, err := emit.New(emit.Config{
		Store:            a.Store,
		Types:            contenttype.New(contenttype.Merge(types, fix)),
		Hasher:           blake3.New(),
		Clock:            clock,
		IDs:              uuid.New(),
		Logger:           a.Logger.Named("emit"),
		Precompress:      cfg.Output.Precompress,
		MinCompressBytes: cfg.Output.MinCompressBytes,
		Manifest:         cfg.Output.Manifest,
	})
	if err != nil {
		return emit.Manifest{}, err
	}
	manifest, err := emitter.Emit(ctx, set)
	if err != nil {
		return emit.Manifest{}, fmt.Errorf("emit: %w", err)
	}

	notice := BuildNotice{
		RunID:       manifest.RunID,
		GeneratedAt: manifest.GeneratedAt,
		Artifacts:   len(manifest.Artifacts),
		ManifestURI: manifest.URI,
	}
	if id, err := a.Publisher.Publish(ctx, NotificationTopic, notice); err != nil {
		a.Logger.Warn("build notification failed", zap.Error(err))
	} else {
		a.Logger.Debug("build notification published", zap.String("message_id", id))
	}
	return manifest, nil
}

// Close shuts down the services in reverse order of creation.
func (a *App) Close() {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = logger.Sync() // best-effort flush; stderr sync fails on some terminals
}

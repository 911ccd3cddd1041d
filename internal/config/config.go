// Package config loads and validates staticgen configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	SSG     SSGConfig     `mapstructure:"ssg"`
	Bundle  BundleConfig  `mapstructure:"bundle"`
	Output  OutputConfig  `mapstructure:"output"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SSGConfig governs entrypoint selection, module loading and the crawl.
type SSGConfig struct {
	Entrypoint         string            `mapstructure:"entrypoint"`
	RemoveEntrypoint   bool              `mapstructure:"remove_entrypoint"`
	BaseURL            string            `mapstructure:"baseurl"`
	EntryPaths         []string          `mapstructure:"entrypaths"`
	Concurrency        int               `mapstructure:"concurrency"`
	PublicDir          string            `mapstructure:"-"`
	HandlerSymbol      string            `mapstructure:"handler_symbol"`
	FixExtension       map[string]string `mapstructure:"fixextension"`
	ContentTypes       map[string]string `mapstructure:"content_types"`
	ScrapeLinks        []string          `mapstructure:"scrapelinks"`
	CaptureContentType bool              `mapstructure:"capture_content_type"`
	WorkspaceDir       string            `mapstructure:"workspace_dir"`
	ModuleName         string            `mapstructure:"module_name"`
	Loader             string            `mapstructure:"loader"`
	ModuleStartTimeout time.Duration     `mapstructure:"module_start_timeout"`
	MaxBodyBytes       int               `mapstructure:"max_body_bytes"`
	RequestTimeout     time.Duration     `mapstructure:"request_timeout"`
	UserAgent          string            `mapstructure:"user_agent"`
	RequestsPerSecond  float64           `mapstructure:"requests_per_second"`
	Burst              int               `mapstructure:"burst"`
}

// BundleConfig points at the bundler output to post-process.
type BundleConfig struct {
	Dir     string   `mapstructure:"dir"`
	Entries []string `mapstructure:"entries"`
}

// OutputConfig selects where emitted artifacts are written.
type OutputConfig struct {
	Provider         string   `mapstructure:"provider"`
	Dir              string   `mapstructure:"dir"`
	GCSBucket        string   `mapstructure:"gcs_bucket"`
	Prefix           string   `mapstructure:"prefix"`
	CacheControl     string   `mapstructure:"cache_control"`
	Precompress      []string `mapstructure:"precompress"`
	MinCompressBytes int      `mapstructure:"min_compress_bytes"`
	Manifest         string   `mapstructure:"manifest"`
}

// PubSubConfig holds metadata for build notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATICGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		// Without an explicit path, look for staticgen.{yaml,json,toml} in the
		// usual places; a missing file leaves defaults and env in effect.
		v.SetConfigName("staticgen")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.staticgen")
		v.AddConfigPath("/etc/staticgen/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	publicDir, err := publicDirValue(v.Get("ssg.publicdir"))
	if err != nil {
		return Config{}, err
	}
	cfg.SSG.PublicDir = publicDir

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("ssg.entrypoint", "")
	v.SetDefault("ssg.remove_entrypoint", false)
	v.SetDefault("ssg.baseurl", "http://localhost/")
	v.SetDefault("ssg.entrypaths", []string{})
	v.SetDefault("ssg.concurrency", 2)
	v.SetDefault("ssg.publicdir", "public")
	v.SetDefault("ssg.handler_symbol", "Handler")
	v.SetDefault("ssg.fixextension", map[string]string{"text/html": "html"})
	v.SetDefault("ssg.scrapelinks", []string{"text/html", "text/css"})
	v.SetDefault("ssg.capture_content_type", false)
	v.SetDefault("ssg.workspace_dir", ".cache/staticgen/ssg")
	v.SetDefault("ssg.module_name", "app.so")
	v.SetDefault("ssg.loader", "plugin")
	v.SetDefault("ssg.module_start_timeout", "10s")
	v.SetDefault("ssg.max_body_bytes", 0)
	v.SetDefault("ssg.request_timeout", "30s")
	v.SetDefault("bundle.dir", "dist")
	v.SetDefault("output.provider", "local")
	v.SetDefault("output.dir", "site")
	v.SetDefault("output.min_compress_bytes", 1024)
	v.SetDefault("output.manifest", "staticgen-manifest.json")
}

// publicDirValue accepts a path, an empty string, or a boolean. false
// disables the public directory and true selects the default "public".
func publicDirValue(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case bool:
		if v {
			return "public", nil
		}
		return "", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false":
			return "", nil
		case "true":
			return "public", nil
		}
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("ssg.publicdir must be a path or false, got %T", raw)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.SSG.Concurrency <= 0 {
		return fmt.Errorf("ssg.concurrency must be > 0")
	}
	u, err := url.Parse(c.SSG.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ssg.baseurl must be an absolute url, got %q", c.SSG.BaseURL)
	}
	switch c.SSG.Loader {
	case "plugin", "exec":
	default:
		return fmt.Errorf("ssg.loader must be plugin or exec, got %q", c.SSG.Loader)
	}
	if strings.TrimSpace(c.SSG.ModuleName) == "" {
		return fmt.Errorf("ssg.module_name is required")
	}
	if strings.TrimSpace(c.SSG.WorkspaceDir) == "" {
		return fmt.Errorf("ssg.workspace_dir is required")
	}
	if strings.TrimSpace(c.SSG.HandlerSymbol) == "" {
		return fmt.Errorf("ssg.handler_symbol is required")
	}
	if c.SSG.MaxBodyBytes < 0 {
		return fmt.Errorf("ssg.max_body_bytes must be >= 0")
	}
	if c.SSG.RequestsPerSecond < 0 {
		return fmt.Errorf("ssg.requests_per_second must be >= 0")
	}
	if c.SSG.Loader == "exec" && c.SSG.ModuleStartTimeout <= 0 {
		return fmt.Errorf("ssg.module_start_timeout must be > 0 with the exec loader")
	}
	switch c.Output.Provider {
	case "local":
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local provider")
		}
	case "gcs":
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket is required for the gcs provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown output.provider %q", c.Output.Provider)
	}
	for _, enc := range c.Output.Precompress {
		switch enc {
		case "gzip", "zstd":
		default:
			return fmt.Errorf("unsupported output.precompress encoding %q", enc)
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

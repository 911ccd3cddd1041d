package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSG.BaseURL != "http://localhost/" {
		t.Fatalf("expected default baseurl, got %q", cfg.SSG.BaseURL)
	}
	if cfg.SSG.Concurrency != 2 {
		t.Fatalf("expected default concurrency 2, got %d", cfg.SSG.Concurrency)
	}
	if cfg.SSG.PublicDir != "public" {
		t.Fatalf("expected default publicdir, got %q", cfg.SSG.PublicDir)
	}
	if cfg.SSG.FixExtension["text/html"] != "html" {
		t.Fatalf("expected html fixextension default, got %v", cfg.SSG.FixExtension)
	}
	if len(cfg.SSG.ScrapeLinks) != 2 {
		t.Fatalf("expected html and css scrapers, got %v", cfg.SSG.ScrapeLinks)
	}
	if cfg.SSG.ModuleName != "app.so" || cfg.SSG.Loader != "plugin" || cfg.SSG.HandlerSymbol != "Handler" {
		t.Fatalf("unexpected module defaults: %+v", cfg.SSG)
	}
	if cfg.SSG.ModuleStartTimeout != 10*time.Second {
		t.Fatalf("expected 10s start timeout, got %v", cfg.SSG.ModuleStartTimeout)
	}
	if cfg.SSG.WorkspaceDir != ".cache/staticgen/ssg" {
		t.Fatalf("unexpected workspace dir %q", cfg.SSG.WorkspaceDir)
	}
	if cfg.Output.Provider != "local" || cfg.Output.Manifest == "" {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: true
ssg:
  entrypoint: server.so
  remove_entrypoint: true
  baseurl: https://example.com/docs/
  entrypaths: ["/404", "/sitemap.xml"]
  concurrency: 6
  publicdir: false
  fixextension:
    text/html: htm
    application/json: json
  capture_content_type: true
  loader: exec
  module_start_timeout: 3s
  max_body_bytes: 1048576
  requests_per_second: 2.5
  burst: 4
bundle:
  dir: build
  entries: [server.so]
output:
  provider: gcs
  gcs_bucket: site-bucket
  prefix: v1
  precompress: [gzip, zstd]
pubsub:
  project_id: proj
  topic_name: builds
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Logging.Development {
		t.Fatalf("expected development logging")
	}
	if cfg.SSG.Entrypoint != "server.so" || !cfg.SSG.RemoveEntrypoint {
		t.Fatalf("expected entrypoint overrides: %+v", cfg.SSG)
	}
	if cfg.SSG.PublicDir != "" {
		t.Fatalf("expected publicdir disabled, got %q", cfg.SSG.PublicDir)
	}
	if cfg.SSG.Concurrency != 6 || len(cfg.SSG.EntryPaths) != 2 {
		t.Fatalf("expected crawl overrides: %+v", cfg.SSG)
	}
	if cfg.SSG.FixExtension["text/html"] != "htm" || cfg.SSG.FixExtension["application/json"] != "json" {
		t.Fatalf("expected fixextension overrides: %v", cfg.SSG.FixExtension)
	}
	if cfg.SSG.Loader != "exec" || cfg.SSG.ModuleStartTimeout != 3*time.Second {
		t.Fatalf("expected loader overrides: %+v", cfg.SSG)
	}
	if cfg.SSG.RequestsPerSecond != 2.5 || cfg.SSG.Burst != 4 {
		t.Fatalf("expected throttle overrides: %+v", cfg.SSG)
	}
	if !cfg.SSG.CaptureContentType || cfg.SSG.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected capture overrides: %+v", cfg.SSG)
	}
	if cfg.Bundle.Dir != "build" || len(cfg.Bundle.Entries) != 1 {
		t.Fatalf("expected bundle overrides: %+v", cfg.Bundle)
	}
	if cfg.Output.GCSBucket != "site-bucket" || len(cfg.Output.Precompress) != 2 {
		t.Fatalf("expected output overrides: %+v", cfg.Output)
	}
	if cfg.PubSub.TopicName != "builds" {
		t.Fatalf("expected pubsub overrides: %+v", cfg.PubSub)
	}
}

func TestLoadPublicDirFromEnv(t *testing.T) {
	t.Setenv("STATICGEN_SSG_PUBLICDIR", "static")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSG.PublicDir != "static" {
		t.Fatalf("expected publicdir from env, got %q", cfg.SSG.PublicDir)
	}
}

func TestLoadDiscoversConfigInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "staticgen.yaml"), []byte("ssg:\n  concurrency: 7\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSG.Concurrency != 7 {
		t.Fatalf("expected discovered concurrency 7, got %d", cfg.SSG.Concurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPublicDirValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{in: nil, want: ""},
		{in: false, want: ""},
		{in: true, want: "public"},
		{in: "false", want: ""},
		{in: " assets ", want: "assets"},
		{in: 42, wantErr: true},
	}
	for _, tt := range tests {
		got, err := publicDirValue(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("publicDirValue(%v) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("publicDirValue(%v) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		SSG: SSGConfig{
			BaseURL:       "http://localhost/",
			Concurrency:   2,
			Loader:        "plugin",
			ModuleName:    "app.so",
			WorkspaceDir:  ".cache",
			HandlerSymbol: "Handler",
		},
		Output: OutputConfig{Provider: "local", Dir: "site"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid concurrency", mutate: func(c *Config) { c.SSG.Concurrency = 0 }, want: "ssg.concurrency"},
		{name: "relative baseurl", mutate: func(c *Config) { c.SSG.BaseURL = "/docs" }, want: "ssg.baseurl"},
		{name: "unknown loader", mutate: func(c *Config) { c.SSG.Loader = "wasm" }, want: "ssg.loader"},
		{name: "missing module name", mutate: func(c *Config) { c.SSG.ModuleName = " " }, want: "ssg.module_name"},
		{name: "missing workspace", mutate: func(c *Config) { c.SSG.WorkspaceDir = "" }, want: "ssg.workspace_dir"},
		{name: "missing symbol", mutate: func(c *Config) { c.SSG.HandlerSymbol = "" }, want: "ssg.handler_symbol"},
		{name: "negative body limit", mutate: func(c *Config) { c.SSG.MaxBodyBytes = -1 }, want: "ssg.max_body_bytes"},
		{name: "negative rate", mutate: func(c *Config) { c.SSG.RequestsPerSecond = -1 }, want: "ssg.requests_per_second"},
		{name: "exec without timeout", mutate: func(c *Config) { c.SSG.Loader = "exec" }, want: "ssg.module_start_timeout"},
		{name: "local without dir", mutate: func(c *Config) { c.Output.Dir = "" }, want: "output.dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Output.Provider = "gcs" }, want: "output.gcs_bucket"},
		{name: "unknown provider", mutate: func(c *Config) { c.Output.Provider = "s3" }, want: "output.provider"},
		{name: "bad encoding", mutate: func(c *Config) { c.Output.Precompress = []string{"br"} }, want: "output.precompress"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

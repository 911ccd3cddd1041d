package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := resolutionsTotal
	Init()
	if resolutionsTotal != first {
		t.Fatal("Init() replaced collectors on second call")
	}
	if capturedArtifactsTotal == nil || buildDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveResolution(t *testing.T) {
	before := testutil.ToFloat64(counterFor(SourcePublic))
	ObserveResolution(SourcePublic)
	ObserveResolution(SourcePublic)
	if got := testutil.ToFloat64(counterFor(SourcePublic)) - before; got != 2 {
		t.Errorf("expected 2 public resolutions, got %f", got)
	}
}

func TestObserveCapture(t *testing.T) {
	Init()
	artifacts := testutil.ToFloat64(capturedArtifactsTotal)
	bytes := testutil.ToFloat64(capturedBytesTotal)
	ObserveCapture(10)
	ObserveCapture(0)
	if got := testutil.ToFloat64(capturedArtifactsTotal) - artifacts; got != 2 {
		t.Errorf("expected 2 captures, got %f", got)
	}
	if got := testutil.ToFloat64(capturedBytesTotal) - bytes; got != 10 {
		t.Errorf("expected 10 captured bytes, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	ObserveGenerate("success", 1500*time.Millisecond)
	ObserveEmit(3)
	ObserveCrawlFailure("status")
	ObserveThrottle(5 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "staticgen.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	// #nosec G304 -- test reads from its own temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, name := range []string{
		"staticgen_generate_duration_seconds",
		"staticgen_emitted_artifacts_total",
		"staticgen_crawl_failures_total",
		"staticgen_throttle_delay_seconds",
	} {
		if !strings.Contains(string(data), name) {
			t.Errorf("expected %s in textfile output", name)
		}
	}
}

func counterFor(source string) prometheus.Counter {
	Init()
	return resolutionsTotal.WithLabelValues(source)
}

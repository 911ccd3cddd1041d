// Package metrics exposes Prometheus collectors for static site generation runs.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution sources reported by ObserveResolution.
const (
	SourcePublic      = "public"
	SourceArtifact    = "artifact"
	SourceHandler     = "handler"
	SourcePassthrough = "passthrough"
)

var (
	resolutionsTotal       *prometheus.CounterVec
	capturedArtifactsTotal prometheus.Counter
	capturedBytesTotal     prometheus.Counter
	crawlFailuresTotal     *prometheus.CounterVec
	emittedArtifactsTotal  prometheus.Counter
	emittedBytesTotal      prometheus.Counter
	buildDurationSeconds   *prometheus.HistogramVec
	throttleDelaySeconds   prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staticgen_resolutions_total",
				Help: "Fetches resolved during a crawl, labeled by the source that answered.",
			},
			[]string{"source"},
		)

		capturedArtifactsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "staticgen_captured_artifacts_total",
				Help: "Total number of artifacts captured from crawl responses.",
			},
		)

		capturedBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "staticgen_captured_bytes_total",
				Help: "Total number of bytes captured from crawl responses.",
			},
		)

		crawlFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staticgen_crawl_failures_total",
				Help: "Crawl requests that failed, labeled by kind (status or fatal).",
			},
			[]string{"kind"},
		)

		emittedArtifactsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "staticgen_emitted_artifacts_total",
				Help: "Total number of artifacts written to the output store.",
			},
		)

		emittedBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "staticgen_emitted_bytes_total",
				Help: "Total number of bytes written to the output store.",
			},
		)

		buildDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staticgen_generate_duration_seconds",
				Help:    "Wall time of the static generation finalize step, labeled by result.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		)

		throttleDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "staticgen_throttle_delay_seconds",
				Help:    "Time crawl requests spent waiting on the rate limiter.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		)
	})
}

// ObserveResolution counts a fetch answered by source.
func ObserveResolution(source string) {
	Init()
	resolutionsTotal.WithLabelValues(source).Inc()
}

// ObserveCapture records one captured artifact of the given size.
func ObserveCapture(bytes int) {
	Init()
	capturedArtifactsTotal.Inc()
	if bytes > 0 {
		capturedBytesTotal.Add(float64(bytes))
	}
}

// ObserveCrawlFailure counts a failed crawl request.
func ObserveCrawlFailure(kind string) {
	Init()
	crawlFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveEmit records one artifact written to the output store.
func ObserveEmit(bytes int) {
	Init()
	emittedArtifactsTotal.Inc()
	if bytes > 0 {
		emittedBytesTotal.Add(float64(bytes))
	}
}

// ObserveGenerate records the duration of a generation run.
func ObserveGenerate(result string, duration time.Duration) {
	Init()
	buildDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveThrottle records time spent waiting for a rate-limit token.
func ObserveThrottle(delay time.Duration) {
	Init()
	throttleDelaySeconds.Observe(delay.Seconds())
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format, for batch runs that have no scrape endpoint.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry records run, completion, and publish metrics. Metrics are
// observability only: nothing in the pipeline reads them back.
type Telemetry struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	tokensTotal  *prometheus.CounterVec
	publishTotal *prometheus.CounterVec
	results      prometheus.Gauge
}

// New registers the digest metrics on the given registerer (the default
// prometheus registry when nil).
func New(reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Telemetry{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "Wall-clock duration of a full pipeline run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_llm_tokens_total",
			Help: "LLM token usage by kind.",
		}, []string{"kind"}),
		publishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_publish_total",
			Help: "Publish attempts by sink and outcome.",
		}, []string{"sink", "status"}),
		results: factory.NewGauge(prometheus.GaugeOpts{
			Name: "digest_search_results",
			Help: "Usable search results in the most recent run.",
		}),
	}
}

// RecordRun records completion of a pipeline run.
func (t *Telemetry) RecordRun(status string, d time.Duration) {
	t.runsTotal.WithLabelValues(status).Inc()
	t.runDuration.Observe(d.Seconds())
}

// RecordTokens records LLM token usage for a run.
func (t *Telemetry) RecordTokens(prompt, completion int) {
	t.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	t.tokensTotal.WithLabelValues("completion").Add(float64(completion))
}

// RecordPublish records a publish attempt outcome for one sink.
func (t *Telemetry) RecordPublish(sink, status string) {
	t.publishTotal.WithLabelValues(sink, status).Inc()
}

// RecordResults records how many usable search results the run gathered.
func (t *Telemetry) RecordResults(n int) {
	t.results.Set(float64(n))
}

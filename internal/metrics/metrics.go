// metrics.go - Prometheus metrics for transfers, proof stages and balance recovery.
package metrics

import (
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axiompay"

// Collector owns a registry and the client metrics. It satisfies the
// observer interfaces of the dlog, pipeline and transfer packages.
type Collector struct {
	registry *prometheus.Registry

	transfers     *prometheus.CounterVec
	transferTime  *prometheus.HistogramVec
	stageTime     *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	searchTime    prometheus.Histogram
	searchSteps   prometheus.Counter
	searchMisses  prometheus.Counter
	circuitSetups *prometheus.CounterVec
}

// New returns a collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers by kind and final state.",
		}, []string{"kind", "state"}),
		transferTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "End-to-end transfer duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Proof pipeline stage duration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind", "stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_failures_total",
			Help:      "Failed proof pipeline stages.",
		}, []string{"kind", "stage"}),
		searchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dlog_search_duration_seconds",
			Help:      "Discrete-log search duration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		searchSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlog_candidates_total",
			Help:      "Candidates examined by discrete-log searches.",
		}),
		searchMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlog_not_found_total",
			Help:      "Searches that exhausted the bound.",
		}),
		circuitSetups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_setups_total",
			Help:      "Circuit artifact setups by kind.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.transfers, c.transferTime, c.stageTime, c.stageErrors,
		c.searchTime, c.searchSteps, c.searchMisses, c.circuitSetups,
	)
	return c
}

// WithGoCollectorRuntimeMetrics adds Go runtime metrics.
func (c *Collector) WithGoCollectorRuntimeMetrics() *Collector {
	c.registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
	return c
}

// WithBuildInfoCollector adds the build info metric.
func (c *Collector) WithBuildInfoCollector() *Collector {
	c.registry.MustRegister(collectors.NewBuildInfoCollector())
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveTransfer(kind, state string, elapsed time.Duration) {
	c.transfers.WithLabelValues(kind, state).Inc()
	c.transferTime.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveStage(kind, stage string, elapsed time.Duration, err error) {
	c.stageTime.WithLabelValues(kind, stage).Observe(elapsed.Seconds())
	if err != nil {
		c.stageErrors.WithLabelValues(kind, stage).Inc()
	}
}

func (c *Collector) ObserveSearch(elapsed time.Duration, candidates uint64, found bool) {
	c.searchTime.Observe(elapsed.Seconds())
	c.searchSteps.Add(float64(candidates))
	if !found {
		c.searchMisses.Inc()
	}
}

// RecordCircuitSetup counts an artifact setup of kind.
func (c *Collector) RecordCircuitSetup(kind string) {
	c.circuitSetups.WithLabelValues(kind).Inc()
}

// Bridges the rcrowley/go-metrics registry (storage/metrics's
// counters, plus anything else registered into
// rcmetrics.DefaultRegistry) onto a Prometheus /metrics endpoint.
// registryCollector walks the go-metrics registry and exposes each
// meter as a gauge directly against client_golang.
package node

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rcmetrics "github.com/rcrowley/go-metrics"
)

// registryCollector adapts an rcmetrics.Registry to prometheus.Collector
// by snapshotting every registered meter/counter/gauge on each scrape.
type registryCollector struct {
	registry rcmetrics.Registry
	prefix string
}

// NewMetricsHandler returns an http.Handler serving Prometheus text
// format for everything registered in rcmetrics.DefaultRegistry.
func NewMetricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(&registryCollector{registry: rcmetrics.DefaultRegistry, prefix: "cuprated_"})
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ServeMetrics starts an HTTP listener on addr serving /metrics,
// running the exporter off the main goroutine.
func ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewMetricsHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			nodeLogger.Error("prometheus exporter failed", "addr", addr, "err", err)
		}
	}()
}

func (c *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	// Descriptions are generated per metric name in Collect; Prometheus
	// permits a Collector to skip Describe when it can't predict its
	// metric set ahead of a scrape (unchecked collector).
}

func (c *registryCollector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Each(func(name string, metric interface{}) {
			fqName := c.prefix + sanitizeMetricName(name)
			switch m := metric.(type) {
			case rcmetrics.Meter:
				emitGauge(ch, fqName+"_rate1m", m.Rate1())
				emitGauge(ch, fqName+"_count", float64(m.Count()))
			case rcmetrics.Counter:
				emitGauge(ch, fqName+"_count", float64(m.Count()))
			case rcmetrics.Gauge:
				emitGauge(ch, fqName, float64(m.Value()))
			case rcmetrics.Timer:
				emitGauge(ch, fqName+"_count", float64(m.Count()))
				emitGauge(ch, fqName+"_mean_ns", m.Mean())
			}
	})
}

func emitGauge(ch chan<- prometheus.Metric, name string, value float64) {
	desc := prometheus.NewDesc(name, name, nil, nil)
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value)
}

// sanitizeMetricName replaces the '/' go-metrics names use as a
// namespace separator (e.g. "compaction/time") with Prometheus's '_'.
func sanitizeMetricName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == '.' || name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}

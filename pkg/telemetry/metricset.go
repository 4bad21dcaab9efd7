package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricSet holds the counters of one kind of work, like a service or a track.
type MetricSet struct {
	LabelNames              []string
	StartedCounter          *prometheus.CounterVec
	HandledCounter          *prometheus.CounterVec
	HandledHistogramEnabled bool
	HandledHistogramOpts    prometheus.HistogramOpts
	HandledHistogram        *prometheus.HistogramVec
}

// NewMetricSet names the metrics after app and the last label, the kind of work counted.
func NewMetricSet(app string, labelNames []string) *MetricSet {
	tpe := labelNames[len(labelNames)-1]
	return &MetricSet{
		LabelNames: labelNames,
		StartedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_%s_started_total", app, tpe),
				Help: fmt.Sprintf("Total number of %s updates started.", tpe),
			}, labelNames),
		HandledCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_%s_handled_total", app, tpe),
				Help: fmt.Sprintf("Total number of %s updates finished, by status.", tpe),
			}, append(append([]string{}, labelNames...), "status")),
		HandledHistogramOpts: prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_%s_handling_seconds", app, tpe),
			Help:    fmt.Sprintf("Histogram of %s update duration in seconds.", tpe),
			Buckets: prometheus.DefBuckets,
		},
	}
}

// EnableHandlingTimeHistogram creates the duration histogram. The buckets of
// HandledHistogramOpts can be changed before calling it.
func (m *MetricSet) EnableHandlingTimeHistogram() {
	if !m.HandledHistogramEnabled {
		m.HandledHistogram = prometheus.NewHistogramVec(
			m.HandledHistogramOpts,
			m.LabelNames,
		)
	}
	m.HandledHistogramEnabled = true
}

func (m *MetricSet) Start(labelValues []string) {
	m.StartedCounter.WithLabelValues(labelValues...).Inc()
}

func (m *MetricSet) Observe(startTime, endTime time.Time, status string, labelValues []string) {
	counterLabels := append([]string{}, labelValues...)
	counterLabels = append(counterLabels, status)
	m.HandledCounter.WithLabelValues(counterLabels...).Inc()
	if m.HandledHistogramEnabled {
		m.HandledHistogram.WithLabelValues(labelValues...).Observe(endTime.Sub(startTime).Seconds())
	}
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once
// the last descriptor has been sent.
func (m *MetricSet) Describe(ch chan<- *prometheus.Desc) {
	m.StartedCounter.Describe(ch)
	m.HandledCounter.Describe(ch)
	if m.HandledHistogramEnabled {
		m.HandledHistogram.Describe(ch)
	}
}

// Collect is called by the Prometheus registry when collecting
// metrics. The implementation sends each collected metric via the
// provided channel and returns once the last metric has been sent.
func (m *MetricSet) Collect(ch chan<- prometheus.Metric) {
	m.StartedCounter.Collect(ch)
	m.HandledCounter.Collect(ch)
	if m.HandledHistogramEnabled {
		m.HandledHistogram.Collect(ch)
	}
}

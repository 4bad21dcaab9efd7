// See:
//   https://godoc.org/github.com/prometheus/client_golang/prometheus/push#Pusher.Push
//   https://prometheus.io/docs/instrumenting/pushing/
package telemetry

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	KindService = "service"
	KindTrack   = "track"
)

// Metrics is a collection of metric sets, one per label name. The set of the
// i-th label is labelled by the first i+1 label names, so track metrics carry
// the service they belong to.
type Metrics struct {
	labelNames       []string
	kindToMetricSets map[string]*MetricSet
}

// NewMetrics returns a Metrics object. Use a new instance of Metrics per run
// so that pushed values only reflect that run.
func NewMetrics(name string, labelNames []string) *Metrics {
	metricsets := map[string]*MetricSet{}
	for i := 0; i < len(labelNames); i++ {
		l := labelNames[i]
		metricsets[l] = NewMetricSet(name, labelNames[:i+1])
	}

	return &Metrics{
		labelNames:       labelNames,
		kindToMetricSets: metricsets,
	}
}

// NewRolloutMetrics returns the metrics recorded by a rollout run.
func NewRolloutMetrics() *Metrics {
	m := NewMetrics("libroll", []string{KindService, KindTrack})
	m.EnableHandlingTimeHistogram()
	return m
}

func (m *Metrics) EnableHandlingTimeHistogram() {
	for _, ms := range m.kindToMetricSets {
		ms.EnableHandlingTimeHistogram()
	}
}

func (m *Metrics) set(kind string, labelValues []string) (*MetricSet, error) {
	ms, ok := m.kindToMetricSets[kind]
	if !ok {
		return nil, fmt.Errorf("unknown metric kind %q", kind)
	}
	if len(labelValues) != len(ms.LabelNames) {
		return nil, fmt.Errorf("metric kind %q takes %d label values, got %d", kind, len(ms.LabelNames), len(labelValues))
	}
	return ms, nil
}

// Start counts one unit of work of the kind as started.
func (m *Metrics) Start(kind string, labelValues ...string) error {
	ms, err := m.set(kind, labelValues)
	if err != nil {
		return err
	}
	ms.Start(labelValues)
	return nil
}

// Observe counts one finished unit of work of the kind with its status and duration.
func (m *Metrics) Observe(kind string, startTime, endTime time.Time, status string, labelValues ...string) error {
	ms, err := m.set(kind, labelValues)
	if err != nil {
		return err
	}
	ms.Observe(startTime, endTime, status, labelValues)
	return nil
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once
// the last descriptor has been sent.
func (m *Metrics) Describe(ch chan<- *prom.Desc) {
	for _, ms := range m.kindToMetricSets {
		ms.Describe(ch)
	}
}

// Collect is called by the Prometheus registry when collecting
// metrics. The implementation sends each collected metric via the
// provided channel and returns once the last metric has been sent.
func (m *Metrics) Collect(ch chan<- prom.Metric) {
	for _, ms := range m.kindToMetricSets {
		ms.Collect(ch)
	}
}

// pushBase can be something like http://pushgateway:9091 (for pushgateway)
// or http://pushgateway:9091/api/ui (for weaveworks/prom-aggregation-gateway)
func (m *Metrics) Push(pushBase, job string) error {
	return push.New(pushBase, job).
		Collector(m).
		Push()
}

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Default is the process-wide metrics instance
	Default *Metrics
	// DefaultRegistry backs Default. A dedicated registry keeps the
	// summary free of Go runtime collectors.
	DefaultRegistry *prometheus.Registry
	once            sync.Once
)

// InitDefault initializes the default metrics instance
func InitDefault() *Metrics {
	once.Do(func() {
		DefaultRegistry, Default = NewRegistry()
	})
	return Default
}

// GetDefault returns the default metrics instance, initializing it if needed
func GetDefault() *Metrics {
	return InitDefault()
}

// NewRegistry creates a new Prometheus registry with metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// Reset clears the default metrics instance (useful for testing)
func Reset() {
	Default = nil
	DefaultRegistry = nil
	once = sync.Once{}
}

// Sample is one non-zero counter series
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// String renders the sample in exposition-like form
func (s Sample) String() string {
	if s.Labels == "" {
		return fmt.Sprintf("%s %g", s.Name, s.Value)
	}
	return fmt.Sprintf("%s{%s} %g", s.Name, s.Labels, s.Value)
}

// Summarize gathers every non-zero counter from g, sorted by name and labels.
// Histograms are summarized by their sample count.
func Summarize(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	var samples []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			if value == 0 {
				continue
			}
			samples = append(samples, Sample{
				Name:   mf.GetName(),
				Labels: formatLabels(m.GetLabel()),
				Value:  value,
			})
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	return strings.Join(parts, ",")
}

package dhat

import (
	"fmt"
	"slices"
	"strings"
)

// Metric selects which statistic of a program point is used as its weight.
type Metric int

const (
	// Total memory allocated per stack over the whole run.
	MetricTotal Metric = iota
	// Peak memory held per stack at any point in time.
	MetricMax
	// Memory still live at program exit, useful to find leaks.
	MetricEnd
	// Memory live at the moment of the global heap maximum, useful to find spikes.
	MetricHeapMax
)

var metricNames = [...]string{
	MetricTotal:   "total",
	MetricMax:     "max",
	MetricEnd:     "end",
	MetricHeapMax: "heap-max",
}

func (m Metric) String() string {
	if m < 0 || int(m) >= len(metricNames) {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricNames[m]
}

// Metrics lists textual names of all metrics.
func Metrics() []string {
	return slices.Clone(metricNames[:])
}

func ParseMetric(name string) (Metric, error) {
	for i, known := range metricNames {
		if known == name {
			return Metric(i), nil
		}
	}
	return MetricTotal, fmt.Errorf("unknown metric %q, expected one of [%s]", name, strings.Join(Metrics(), ", "))
}

// needsLifetimes reports whether the metric is backed by fields
// that are only written when block lifetimes are recorded.
func (m Metric) needsLifetimes() bool {
	return m != MetricTotal
}

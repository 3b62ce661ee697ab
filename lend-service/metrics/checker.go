package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// RegistryChecker reads values out of a gathered registry in tests.
// Lookups fail the test when the metric is missing or ambiguous.
type RegistryChecker struct {
	t        require.TestingT
	families map[string]*gocl.MetricFamily
}

func NewRegistryChecker(t require.TestingT, reg *prometheus.Registry) *RegistryChecker {
	gathered, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	families := make(map[string]*gocl.MetricFamily, len(gathered))
	for _, f := range gathered {
		families[f.GetName()] = f
	}
	return &RegistryChecker{t: t, families: families}
}

func (c *RegistryChecker) Counter(name string, labels map[string]string) float64 {
	m := c.find(name, labels)
	require.NotNil(c.t, m.Counter, "%s is not a counter", name)
	return m.Counter.GetValue()
}

func (c *RegistryChecker) Gauge(name string, labels map[string]string) float64 {
	m := c.find(name, labels)
	require.NotNil(c.t, m.Gauge, "%s is not a gauge", name)
	return m.Gauge.GetValue()
}

// Observations returns how many samples a histogram recorded.
func (c *RegistryChecker) Observations(name string, labels map[string]string) uint64 {
	m := c.find(name, labels)
	require.NotNil(c.t, m.Histogram, "%s is not a histogram", name)
	return m.Histogram.GetSampleCount()
}

// find returns the one series of name that carries all given labels.
func (c *RegistryChecker) find(name string, labels map[string]string) *gocl.Metric {
	fam, ok := c.families[name]
	require.True(c.t, ok, "no metric family %q", name)
	var found *gocl.Metric
	for _, m := range fam.Metric {
		if !matches(m, labels) {
			continue
		}
		require.Nil(c.t, found, "labels %v match more than one series of %s", labels, name)
		found = m
	}
	require.NotNil(c.t, found, "no series of %s with labels %v", name, labels)
	return found
}

func matches(m *gocl.Metric, labels map[string]string) bool {
	have := make(map[string]string, len(m.Label))
	for _, l := range m.Label {
		have[l.GetName()] = l.GetValue()
	}
	for k, v := range labels {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}
	return true
}

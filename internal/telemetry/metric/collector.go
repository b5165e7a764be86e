package metric

import "github.com/prometheus/client_golang/prometheus"

// CacheStats reports handler cache occupancy at scrape time.
type CacheStats interface {
	Len() int
	UnitCount() int
}

// Collector exports handler cache gauges read from a CacheStats source.
type Collector struct {
	stats   CacheStats
	entries *prometheus.Desc
	units   *prometheus.Desc
}

// NewCollector creates a collector over stats.
func NewCollector(stats CacheStats) *Collector {
	return &Collector{
		stats: stats,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "handler_cache", "entries"),
			"Cached handlers keyed by scheme and host.",
			nil, nil,
		),
		units: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "handler_cache", "units"),
			"Loaded units including dependencies.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.units
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(c.stats.Len()))
	ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(c.stats.UnitCount()))
}

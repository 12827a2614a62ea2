package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	hitsDesc = prometheus.NewDesc(
		"taskql_cache_hits_total", "Cache lookups that returned an entry.", []string{"cache"}, nil)
	missesDesc = prometheus.NewDesc(
		"taskql_cache_misses_total", "Cache lookups that found nothing or an expired entry.", []string{"cache"}, nil)
	evictionsDesc = prometheus.NewDesc(
		"taskql_cache_evictions_total", "Entries evicted to make room for a new key.", []string{"cache"}, nil)
	expirationsDesc = prometheus.NewDesc(
		"taskql_cache_expirations_total", "Entries dropped on read after their TTL.", []string{"cache"}, nil)
	sizeDesc = prometheus.NewDesc(
		"taskql_cache_entries", "Entries currently stored.", []string{"cache"}, nil)
)

type metricsSource interface {
	Name() string
	Metrics() Metrics
}

// Collector exports a cache's Metrics to Prometheus.
type Collector struct {
	src metricsSource
}

// NewCollector returns a collector reading from c on every scrape.
func NewCollector[V any](c *Cache[V]) *Collector {
	return &Collector{src: c}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- hitsDesc
	ch <- missesDesc
	ch <- evictionsDesc
	ch <- expirationsDesc
	ch <- sizeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()
	name := c.src.Name()

	ch <- prometheus.MustNewConstMetric(hitsDesc, prometheus.CounterValue, float64(m.Hits), name)
	ch <- prometheus.MustNewConstMetric(missesDesc, prometheus.CounterValue, float64(m.Misses), name)
	ch <- prometheus.MustNewConstMetric(evictionsDesc, prometheus.CounterValue, float64(m.Evictions), name)
	ch <- prometheus.MustNewConstMetric(expirationsDesc, prometheus.CounterValue, float64(m.Expirations), name)
	ch <- prometheus.MustNewConstMetric(sizeDesc, prometheus.GaugeValue, float64(m.Size), name)
}

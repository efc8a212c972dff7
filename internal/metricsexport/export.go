// Package metricsexport wires the gateway's internal metrics snapshots
// (spec.md §6: "read-only snapshots ... plus a statistics_map suitable
// for health-endpoint serialization") onto Prometheus, the way
// prometheus-mysqld_exporter and jordigilh-kubernaut both export their
// own internal counters.
package metricsexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lordbasex/dbgateway/gateway"
)

// Sources is the set of metrics-bearing components the Collector reads
// snapshots from on every Prometheus scrape.
type Sources struct {
	Pool   *gateway.PoolFacade
	Cache  *gateway.Cache
	Router *gateway.Router
}

// Collector implements prometheus.Collector over live gateway metrics
// snapshots, computed fresh on every Collect call rather than cached —
// the same pull model mysqld_exporter uses for its driver-level stats.
type Collector struct {
	sources Sources

	poolActive      *prometheus.Desc
	poolIdle        *prometheus.Desc
	poolAcquisitions *prometheus.Desc
	poolTimeouts    *prometheus.Desc
	poolWaitUS      *prometheus.Desc

	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	cacheSize   *prometheus.Desc
	cacheHitRate *prometheus.Desc

	routerTotal      *prometheus.Desc
	routerSuccess    *prometheus.Desc
	routerFailed     *prometheus.Desc
	routerAvgLatency *prometheus.Desc
}

// NewCollector builds a Collector over the given Sources.
func NewCollector(sources Sources) *Collector {
	return &Collector{
		sources: sources,
		poolActive:       prometheus.NewDesc("dbgateway_pool_active_connections", "Currently leased connections", nil, nil),
		poolIdle:         prometheus.NewDesc("dbgateway_pool_idle_connections", "Currently idle connections", nil, nil),
		poolAcquisitions: prometheus.NewDesc("dbgateway_pool_acquisitions_total", "Total acquisition attempts", []string{"result"}, nil),
		poolTimeouts:     prometheus.NewDesc("dbgateway_pool_timeouts_total", "Total acquisitions that timed out", nil, nil),
		poolWaitUS:       prometheus.NewDesc("dbgateway_pool_avg_wait_us", "Average acquisition wait time in microseconds", nil, nil),
		cacheHits:        prometheus.NewDesc("dbgateway_cache_hits_total", "Total cache hits", nil, nil),
		cacheMisses:      prometheus.NewDesc("dbgateway_cache_misses_total", "Total cache misses", nil, nil),
		cacheSize:        prometheus.NewDesc("dbgateway_cache_entries", "Current cache entry count", nil, nil),
		cacheHitRate:     prometheus.NewDesc("dbgateway_cache_hit_rate", "Cache hit rate (0..1)", nil, nil),
		routerTotal:      prometheus.NewDesc("dbgateway_router_queries_total", "Total queries routed", nil, nil),
		routerSuccess:    prometheus.NewDesc("dbgateway_router_queries_successful_total", "Successful queries", nil, nil),
		routerFailed:     prometheus.NewDesc("dbgateway_router_queries_failed_total", "Failed queries", nil, nil),
		routerAvgLatency: prometheus.NewDesc("dbgateway_router_avg_execution_us", "Average execution time in microseconds", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolActive
	ch <- c.poolIdle
	ch <- c.poolAcquisitions
	ch <- c.poolTimeouts
	ch <- c.poolWaitUS
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheSize
	ch <- c.cacheHitRate
	ch <- c.routerTotal
	ch <- c.routerSuccess
	ch <- c.routerFailed
	ch <- c.routerAvgLatency
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.sources.Pool != nil {
		snap := c.sources.Pool.Metrics().Snapshot()
		ch <- prometheus.MustNewConstMetric(c.poolActive, prometheus.GaugeValue, float64(snap.CurrentActive))
		ch <- prometheus.MustNewConstMetric(c.poolIdle, prometheus.GaugeValue, float64(snap.CurrentQueued))
		ch <- prometheus.MustNewConstMetric(c.poolAcquisitions, prometheus.CounterValue, float64(snap.SuccessfulAcquisitions), "success")
		ch <- prometheus.MustNewConstMetric(c.poolAcquisitions, prometheus.CounterValue, float64(snap.FailedAcquisitions), "failure")
		ch <- prometheus.MustNewConstMetric(c.poolTimeouts, prometheus.CounterValue, float64(snap.Timeouts))
		ch <- prometheus.MustNewConstMetric(c.poolWaitUS, prometheus.GaugeValue, snap.AverageWaitTimeUS)
	}
	if c.sources.Cache != nil {
		snap := c.sources.Cache.Metrics().Snapshot()
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(snap.Hits))
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(snap.Misses))
		ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(c.sources.Cache.Size()))
		ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, snap.HitRate)
	}
	if c.sources.Router != nil {
		snap := c.sources.Router.Metrics()
		ch <- prometheus.MustNewConstMetric(c.routerTotal, prometheus.CounterValue, float64(snap.TotalQueries))
		ch <- prometheus.MustNewConstMetric(c.routerSuccess, prometheus.CounterValue, float64(snap.SuccessfulQueries))
		ch <- prometheus.MustNewConstMetric(c.routerFailed, prometheus.CounterValue, float64(snap.FailedQueries))
		ch <- prometheus.MustNewConstMetric(c.routerAvgLatency, prometheus.GaugeValue, snap.AverageExecutionTimeUS)
	}
}

// StatisticsMap builds the plain map[string]any spec.md §6 names for
// health-endpoint serialization, independent of the Prometheus surface.
func StatisticsMap(sources Sources) map[string]any {
	out := map[string]any{}
	if sources.Pool != nil {
		out["pool"] = sources.Pool.Metrics().Snapshot()
		out["aging"] = sources.Pool.AgingStats()
	}
	if sources.Cache != nil {
		out["cache"] = sources.Cache.Metrics().Snapshot()
	}
	if sources.Router != nil {
		out["router"] = sources.Router.Metrics()
	}
	return out
}

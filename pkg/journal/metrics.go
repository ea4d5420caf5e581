package journal

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// DBStatsCollector exports database/sql pool statistics as Prometheus
// metrics, reading them on each scrape.
type DBStatsCollector struct {
	stats func() sql.DBStats

	openConns    *prometheus.Desc
	inUseConns   *prometheus.Desc
	idleConns    *prometheus.Desc
	maxOpenConns *prometheus.Desc
	waitCount    *prometheus.Desc
	waitSeconds  *prometheus.Desc
}

// NewDBStatsCollector creates a collector for db. A nil db collects nothing.
func NewDBStatsCollector(db *sql.DB, namespace, serviceName string) *DBStatsCollector {
	var stats func() sql.DBStats
	if db != nil {
		stats = db.Stats
	}
	return newDBStatsCollector(stats, namespace, serviceName)
}

func newDBStatsCollector(stats func() sql.DBStats, namespace, serviceName string) *DBStatsCollector {
	constLabels := prometheus.Labels{"service": serviceName}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, constLabels)
	}

	return &DBStatsCollector{
		stats:        stats,
		openConns:    desc("open_conns", "Number of established connections, in use and idle"),
		inUseConns:   desc("in_use_conns", "Number of connections currently in use"),
		idleConns:    desc("idle_conns", "Number of idle connections"),
		maxOpenConns: desc("max_open_conns", "Maximum number of open connections allowed"),
		waitCount:    desc("wait_count_total", "Total number of connections waited for"),
		waitSeconds:  desc("wait_duration_seconds_total", "Total time blocked waiting for a new connection"),
	}
}

// Describe sends all metric descriptors to the channel.
func (c *DBStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConns
	ch <- c.inUseConns
	ch <- c.idleConns
	ch <- c.maxOpenConns
	ch <- c.waitCount
	ch <- c.waitSeconds
}

// Collect gathers current pool statistics.
func (c *DBStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		return
	}

	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.openConns, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUseConns, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.maxOpenConns, prometheus.GaugeValue, float64(s.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitSeconds, prometheus.CounterValue, s.WaitDuration.Seconds())
}

// RegisterDBStatsCollector creates a collector and registers it with reg.
// An already registered collector is not an error.
func RegisterDBStatsCollector(db *sql.DB, namespace, serviceName string, reg prometheus.Registerer) (*DBStatsCollector, error) {
	collector := NewDBStatsCollector(db, namespace, serviceName)
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	}
	return collector, nil
}

package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

// poolStat is the subset of pgxpool.Stat exported as metrics.
type poolStat struct {
	acquired     int32
	idle         int32
	total        int32
	max          int32
	acquires     int64
	emptyWaits   int64
	canceledWait int64
}

func statFromPool(p *pgxpool.Pool) func() poolStat {
	return func() poolStat {
		s := p.Stat()
		return poolStat{
			acquired:     s.AcquiredConns(),
			idle:         s.IdleConns(),
			total:        s.TotalConns(),
			max:          s.MaxConns(),
			acquires:     s.AcquireCount(),
			emptyWaits:   s.EmptyAcquireCount(),
			canceledWait: s.CanceledAcquireCount(),
		}
	}
}

// poolCollector reads pool statistics at scrape time.
type poolCollector struct {
	stat func() poolStat

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquires     *prometheus.Desc
	emptyWaits   *prometheus.Desc
	canceledWait *prometheus.Desc
}

func newPoolCollector(stat func() poolStat) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metrics.Namespace, "db_pool", name), help, nil, nil)
	}
	return &poolCollector{
		stat:         stat,
		acquired:     desc("acquired_connections", "Connections currently checked out of the pool."),
		idle:         desc("idle_connections", "Idle connections in the pool."),
		total:        desc("total_connections", "Open connections, acquired, idle or constructing."),
		max:          desc("max_connections", "Configured pool size."),
		acquires:     desc("acquires_total", "Successful connection acquisitions."),
		emptyWaits:   desc("empty_acquires_total", "Acquisitions that had to wait for a connection."),
		canceledWait: desc("canceled_acquires_total", "Acquisitions abandoned because the context ended."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.emptyWaits
	ch <- c.canceledWait
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.acquired))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.idle))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.total))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.max))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.acquires))
	ch <- prometheus.MustNewConstMetric(c.emptyWaits, prometheus.CounterValue, float64(s.emptyWaits))
	ch <- prometheus.MustNewConstMetric(c.canceledWait, prometheus.CounterValue, float64(s.canceledWait))
}

// RegisterMetrics exposes the pool statistics on reg.
func (c *Client) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(newPoolCollector(statFromPool(c.pool)))
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger"

var (
	countersDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "transactions_total"),
		"Processed and rejected transactions by outcome.",
		[]string{"outcome"}, nil,
	)
	admittedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "admitted_total"),
		"Requests accepted into the pending queue.",
		nil, nil,
	)
	queueDepthDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "queue_depth"),
		"Requests waiting in the pending queue.",
		nil, nil,
	)
	averageBalanceDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "average_balance"),
		"Most recent mean account balance.",
		nil, nil,
	)
	latencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "latency_seconds"),
		"Time from admission to commit of applied transactions.",
		nil, nil,
	)
)

var _ prometheus.Collector = (*Aggregator)(nil)

func (a *Aggregator) Describe(ch chan<- *prometheus.Desc) {
	ch <- countersDesc
	ch <- admittedDesc
	ch <- queueDepthDesc
	ch <- averageBalanceDesc
	ch <- latencyDesc
}

// Collect exports current values without touching the depth history.
func (a *Aggregator) Collect(ch chan<- prometheus.Metric) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range Counters {
		ch <- prometheus.MustNewConstMetric(countersDesc, prometheus.CounterValue, float64(a.counters[c]), string(c))
	}

	ch <- prometheus.MustNewConstMetric(admittedDesc, prometheus.CounterValue, float64(a.totalAdmitted))
	ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(a.depth()))

	if avg, ok := a.averages.last(); ok {
		ch <- prometheus.MustNewConstMetric(averageBalanceDesc, prometheus.GaugeValue, avg)
	}

	ch <- prometheus.MustNewConstSummary(latencyDesc, a.latencyCount, a.latencySum, nil)
}

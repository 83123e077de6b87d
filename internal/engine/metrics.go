package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one engine. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	appended      prometheus.Counter
	failures      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	entries       prometheus.Gauge
}

// NewMetrics creates the engine collectors labeled with ledgerID and
// registers them on reg.
func NewMetrics(reg prometheus.Registerer, ledgerID string) (*Metrics, error) {
	labels := prometheus.Labels{"ledger": ledgerID}

	m := &Metrics{
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "chainledger_entries_appended_total",
			Help:        "Entries appended to the ledger.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chainledger_append_failures_total",
			Help:        "Rejected append and batch calls by error kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chainledger_verifications_total",
			Help:        "Chain verifications by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "chainledger_entries",
			Help:        "Current number of entries in the ledger.",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{m.appended, m.failures, m.verifications, m.entries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) appendedN(n, total int) {
	if m == nil {
		return
	}
	m.appended.Add(float64(n))
	m.entries.Set(float64(total))
}

func (m *Metrics) failed(kind ErrorKind) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) verified(ok bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !ok {
		result = "invalid"
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) loaded(total int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(total))
}

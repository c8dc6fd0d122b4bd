package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts committed and rejected operations per kind.
type Metrics struct {
	Committed *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
}

// NewMetrics registers the node's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Committed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monkeychain_ops_committed_total",
			Help: "Committed ledger operations by kind.",
		}, []string{"op"}),
		Rejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monkeychain_ops_rejected_total",
			Help: "Rejected ledger operations by kind.",
		}, []string{"op"}),
	}
}

func (m *Metrics) committed(op string) {
	if m != nil {
		m.Committed.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) rejected(op string) {
	if m != nil {
		m.Rejected.WithLabelValues(op).Inc()
	}
}

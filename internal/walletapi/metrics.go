package walletapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// apiMetrics holds the façade's Prometheus collectors on a private registry
// so multiple servers never collide on registration.
type apiMetrics struct {
	registry         *prometheus.Registry
	submissionsTotal *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec
	historyFetches   prometheus.Counter
}

func newAPIMetrics() *apiMetrics {
	registry := prometheus.NewRegistry()
	metrics := &apiMetrics{
		registry: registry,
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_submissions_total",
			Help: "Authorized submissions by intent kind and terminal status.",
		}, []string{"kind", "status"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_logins_total",
			Help: "Login attempts by result.",
		}, []string{"status"}),
		historyFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_history_fetches_total",
			Help: "History refetches from the ledger backend.",
		}),
	}
	registry.MustRegister(
		metrics.submissionsTotal,
		metrics.loginsTotal,
		metrics.historyFetches,
		collectors.NewGoCollector(),
	)
	return metrics
}

func (metrics *apiMetrics) observeSubmission(kind string, succeeded bool) {
	status := "success"
	if !succeeded {
		status = "failed"
	}
	metrics.submissionsTotal.WithLabelValues(kind, status).Inc()
}

func (metrics *apiMetrics) observeLogin(succeeded bool) {
	status := "success"
	if !succeeded {
		status = "failed"
	}
	metrics.loginsTotal.WithLabelValues(status).Inc()
}

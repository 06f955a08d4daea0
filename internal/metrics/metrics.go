package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal    *prometheus.CounterVec
	ratingMutationsTotal *prometheus.CounterVec
	pendingActionsTotal  *prometheus.CounterVec
	upstreamBreakerState *prometheus.GaugeVec
	registerOnce         sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treasure",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the gateway.",
		}, []string{"method", "path", "status"})

		ratingMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treasure",
			Name:      "rating_mutations_total",
			Help:      "Rating, like and copy mutations sent upstream, by outcome.",
		}, []string{"kind", "operation", "outcome"})

		pendingActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treasure",
			Name:      "pending_actions_total",
			Help:      "Deferred post-login actions by lifecycle event.",
		}, []string{"event"})

		upstreamBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "treasure",
			Name:      "upstream_breaker_state",
			Help:      "Upstream API circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func IncMutation(kind, operation, outcome string) {
	if ratingMutationsTotal == nil {
		return
	}
	ratingMutationsTotal.WithLabelValues(kind, operation, outcome).Inc()
}

func IncPendingAction(event string) {
	if pendingActionsTotal == nil {
		return
	}
	pendingActionsTotal.WithLabelValues(event).Inc()
}

func SetBreakerState(name string, state int) {
	if upstreamBreakerState == nil {
		return
	}
	upstreamBreakerState.WithLabelValues(name).Set(float64(state))
}

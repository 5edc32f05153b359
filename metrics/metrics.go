// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for mutations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	registry = prometheus.NewRegistry()

	mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bingo",
		Name:      "mutations_total",
		Help:      "Mutations by operation and outcome.",
	}, []string{"operation", "outcome", "code"})

	cellTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bingo",
		Name:      "cell_transitions_total",
		Help:      "Cell status advances by resulting status.",
	}, []string{"status"})

	pushDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bingo",
		Name:      "push_deliveries_total",
		Help:      "Web-push delivery attempts by result.",
	}, []string{"result"})

	globalLeaderboardDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bingo",
		Name:      "global_leaderboard_seconds",
		Help:      "Time spent aggregating the global leaderboard.",
		Buckets:   prometheus.DefBuckets,
	})

	reconciledCards = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bingo",
		Name:      "reconciled_cards_total",
		Help:      "Cards whose stored score was repaired by the reconciler.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mutations,
		cellTransitions,
		pushDeliveries,
		globalLeaderboardDuration,
		reconciledCards,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveMutation counts one mutation. code is the domain error code, empty on success.
func ObserveMutation(operation string, code string) {
	outcome := OutcomeSuccess
	if code != "" {
		outcome = OutcomeFailure
	}
	mutations.WithLabelValues(operation, outcome, code).Inc()
}

// ObserveCellTransition counts a cell moving to status.
func ObserveCellTransition(status string) {
	cellTransitions.WithLabelValues(status).Inc()
}

// ObservePushDelivery counts one push attempt; result is "sent", "gone" or "failed".
func ObservePushDelivery(result string) {
	pushDeliveries.WithLabelValues(result).Inc()
}

// ObserveGlobalLeaderboard records how long one aggregation took.
func ObserveGlobalLeaderboard(d time.Duration) {
	globalLeaderboardDuration.Observe(d.Seconds())
}

// ObserveReconciled counts repaired cards.
func ObserveReconciled(n int) {
	reconciledCards.Add(float64(n))
}

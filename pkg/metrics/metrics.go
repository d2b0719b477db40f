// Package metrics holds the prometheus collectors for the browser service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "browserapi"

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_total",
		Help:      "Browser actions handled, by action and result.",
	}, []string{"action", "result"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "action_duration_seconds",
		Help:      "Time spent handling browser actions.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"action"})

	navigationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigation_failures_total",
		Help:      "Failed navigations, by failure category.",
	}, []string{"category"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "1 for the current browser session state, 0 otherwise.",
	}, []string{"state"})

	sessionInits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_inits_total",
		Help:      "Browser initialization attempts, by result.",
	}, []string{"result"})
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ObserveAction records one handled action.
func ObserveAction(action string, success bool, elapsed time.Duration) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	actionsTotal.WithLabelValues(action, result).Inc()
	actionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// CountNavigationFailure records a failed navigation.
func CountNavigationFailure(category string) {
	navigationFailures.WithLabelValues(category).Inc()
}

// SetSessionState marks state as current and clears the previous one.
func SetSessionState(previous, current string) {
	if previous != "" && previous != current {
		sessionState.WithLabelValues(previous).Set(0)
	}
	sessionState.WithLabelValues(current).Set(1)
}

// CountInit records an initialization attempt.
func CountInit(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	sessionInits.WithLabelValues(result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "punchcard",
			Name:      "transitions_total",
			Help:      "Count of successful shift transitions by kind.",
		},
		[]string{"kind"},
	)

	transitionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "punchcard",
			Name:      "transition_failures_total",
			Help:      "Count of rejected or failed transitions by reason.",
		},
		[]string{"reason"},
	)

	weeklyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "punchcard",
			Name:      "weekly_resets_total",
			Help:      "Count of lazy weekly history resets.",
		},
	)

	mirrorFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "punchcard",
			Name:      "mirror_failures_total",
			Help:      "Count of non-fatal local mirror read/write failures.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "punchcard",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(transitions, transitionFailures, weeklyResets, mirrorFailures, httpRequests)
	})
}

func IncTransition(kind string) {
	transitions.WithLabelValues(kind).Inc()
}

func IncTransitionFailure(reason string) {
	transitionFailures.WithLabelValues(reason).Inc()
}

func IncWeeklyReset() {
	weeklyResets.Inc()
}

func IncMirrorFailure() {
	mirrorFailures.Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

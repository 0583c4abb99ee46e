package feedback

import "github.com/prometheus/client_golang/prometheus"

var (
	effectsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_effects_started_total",
			Help: "Effects started by a reconciler",
		},
		[]string{"loop"},
	)
	effectsStopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_effects_stopped_total",
			Help: "Effects stopped by a reconciler",
		},
		[]string{"loop"},
	)
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_transitions_total",
			Help: "Events applied by a system",
		},
		[]string{"system"},
	)
	rejectedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_rejected_events_total",
			Help: "Events the reducer rejected as invalid for the current state",
		},
		[]string{"system"},
	)
)

func init() {
	prometheus.MustRegister(effectsStarted, effectsStopped, transitions, rejectedEvents)
}

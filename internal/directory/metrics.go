package directory

import "github.com/prometheus/client_golang/prometheus"

var (
	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_directory_lookups_total",
			Help: "Lookups issued to the directory service by outcome",
		},
		[]string{"outcome"},
	)
	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_directory_cache_total",
			Help: "Directory cache resolves by result; coalesced counts callers that shared a lookup",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(lookups, cacheResults)
}

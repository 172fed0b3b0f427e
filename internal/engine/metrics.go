package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remotePushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_remote_pushes_total",
			Help: "Total number of remote cart push attempts by result",
		},
		[]string{"result"},
	)

	remotePushesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_remote_pushes_coalesced_total",
			Help: "Number of push requests coalesced into an already pending push",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_active_sessions",
			Help: "Number of cart engines currently held in memory",
		},
	)
)

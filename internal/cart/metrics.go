package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations applied, by operation.",
		},
		[]string{"op"},
	)

	persistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Cart record writes that failed; the in-memory cart was kept.",
		},
	)

	recordsDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_records_discarded_total",
			Help: "Persisted cart records discarded as malformed during rehydration.",
		},
	)
)

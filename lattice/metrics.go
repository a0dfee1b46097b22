package lattice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_inserts_total",
		Help: "The number of object insertions.",
	}, []string{"result"})

	removes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_removes_total",
		Help: "The number of object removals.",
	}, []string{"result"})

	subdivisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_subdivisions_total",
		Help: "The number of leaf subdivisions.",
	}, []string{"kind"})

	subLatticesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lattice_sublattices_created_total",
		Help: "The number of embedded lattices created.",
	})

	objectsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lattice_objects",
		Help: "The number of objects stored in lattices.",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lattice_tick_duration_seconds",
		Help:    "The duration of tick passes.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	tickActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_tick_actions_total",
		Help: "The number of actions returned by object behaviors.",
	}, []string{"action"})
)

func instrumentInsert(s Status) {
	inserts.WithLabelValues(s.String()).Inc()
	if s == Created {
		objectsGauge.Inc()
	}
}

func instrumentRemove(s Status) {
	removes.WithLabelValues(s.String()).Inc()
	if s == Removed {
		objectsGauge.Dec()
	}
}

func instrumentSubdivision(kind string) {
	subdivisions.WithLabelValues(kind).Inc()
	if kind == subdivisionEmbed {
		subLatticesCreated.Inc()
	}
}

func instrumentTick(start time.Time) {
	tickDuration.Observe(time.Since(start).Seconds())
}

func instrumentTickAction(action string) {
	tickActions.WithLabelValues(action).Inc()
}

package locks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel = "kind"
)

var (
	lockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lattice_lock_wait_seconds",
		Help:    "The time spent waiting for a contended lattice lock.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{kindLabel})
)

func instrumentLockWait(kind string, start time.Time) {
	lockWait.
		With(prometheus.Labels{kindLabel: kind}).
		Observe(time.Since(start).Seconds())
}

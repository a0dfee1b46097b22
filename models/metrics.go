package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	objectPlacementDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lattice_object_placement_depth",
		Help:    "The lattice nesting depth objects are placed at.",
		Buckets: prometheus.LinearBuckets(0, 1, 16),
	})
)

func instrumentPlacement(depth int) {
	objectPlacementDepth.Observe(float64(depth))
}

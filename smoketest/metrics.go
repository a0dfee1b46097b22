package smoketest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smoketest_runs_total",
		Help: "The number of smoke test runs.",
	}, []string{"result"})
)

func instrumentRun(status string) {
	runs.WithLabelValues(status).Inc()
}

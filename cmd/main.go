package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/lattice/featureflag"
	latticehttp "github.com/aukilabs/lattice/http"
	"github.com/aukilabs/lattice/lattice"
	"github.com/aukilabs/lattice/smoketest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The lattice server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "lattice_info",
		Help:        "Lattice server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names readable when the binary is obfuscated, the cli
// package derives its options from them.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"LATTICE_ADDR"                 help:"Listening address for the object API."`
	AdminAddr          string        `cli:""        env:"LATTICE_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"LATTICE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"LATTICE_LOG_INDENT"           help:"Indent logs."`
	Capacity           int           `cli:""        env:"LATTICE_CAPACITY"             help:"The number of objects a leaf holds before being subdivided."`
	MaxDepth           int           `cli:""        env:"LATTICE_MAX_DEPTH"            help:"The maximum number of nested sub-lattices, -1 disables them."`
	FrameDuration      time.Duration `cli:",hidden" env:"LATTICE_FRAME_DURATION"       help:"The duration between each lattice tick."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"LATTICE_LOG_SUMMARY_INTERVAL" help:"The duration between each index operation summary."`
	ScenarioFile       string        `cli:",hidden" env:"LATTICE_SCENARIO_FILE"        help:"A toml or yaml scenario run against a scratch lattice at startup."`
	Events             eventsConfig  `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"LATTICE_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                            help:"Show version."`
	Help               bool          `cli:""        env:"-"                            help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"LATTICE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"LATTICE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"LATTICE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"LATTICE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		Capacity:           lattice.DefaultCapacity,
		MaxDepth:           lattice.DefaultMaxDepth,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the lattice server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if err := validateConfig(conf, featureFlags); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "lattice",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	newIndex := func() (lattice.Index, error) {
		return lattice.New(latticeConfig(conf, featureFlags))
	}

	l, err := newIndex()
	if err != nil {
		logs.Fatal(errors.New("creating lattice failed").Wrap(err))
	}
	idx := lattice.WithLogs(l, conf.LogSummaryInterval)
	defer idx.Close()

	var ready atomic.Bool
	readinessCheck := ready.Load

	var wg sync.WaitGroup

	featureFlags.IfNotSet(featureflag.FlagDisableTick, func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tickLoop(ctx, idx, conf.FrameDuration)
		}()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ready.Store(true)

		if conf.ScenarioFile == "" {
			return
		}
		if err := runStartupScenario(ctx, conf.ScenarioFile, newIndex); err != nil {
			logs.Fatal(err)
		}
	}()

	var service http.ServeMux
	latticehttp.ObjectHandler{Index: idx}.Register(&service)
	service.Handle("/health", latticehttp.HandleWithCORS(http.HandlerFunc(latticehttp.HandleHealthCheck)))
	service.Handle("/version", latticehttp.HandleWithCORS(latticehttp.HandleVersion(version, featureFlags.Names())))
	service.Handle("/ready", latticehttp.HandleWithCORS(latticehttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/debug/lattice", latticehttp.HandleDebug(idx))

	scenario := smoketest.DefaultScenario()
	if conf.ScenarioFile != "" {
		if scenario, err = smoketest.LoadScenario(conf.ScenarioFile); err != nil {
			logs.Fatal(err)
		}
	}
	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Scenario: scenario,
		NewIndex: newIndex,
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logSmokeTestResult(res)
			return nil
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", latticehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", latticehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("capacity", conf.Capacity).
		WithTag("max_depth", conf.MaxDepth).
		WithTag("feature_flags", featureFlags.Names()).
		Info("starting lattice server")

	latticehttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			latticehttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	wg.Wait()
}

func validateConfig(conf config, featureFlags featureflag.FeatureFlag) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be greater than zero").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be greater than zero").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if err := featureFlags.Validate(); err != nil {
		return err
	}

	c := latticeConfig(conf, featureFlags)
	return c.Validate()
}

func latticeConfig(conf config, featureFlags featureflag.FeatureFlag) lattice.Config {
	c := lattice.Config{
		Capacity: conf.Capacity,
		MaxDepth: conf.MaxDepth,
	}

	featureFlags.IfSet(featureflag.FlagTrackLockWaits, func() {
		c.TrackLockWaits = true
	})
	featureFlags.IfSet(featureflag.FlagVisibleAfterCommit, func() {
		c.Visibility = lattice.VisibleAfterCommit
	})
	return c
}

// tickLoop ticks idx on every frame until ctx is done.
func tickLoop(ctx context.Context, idx lattice.Index, frameDuration time.Duration) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			idx.Tick()
		}
	}
}

func runStartupScenario(ctx context.Context, filename string, newIndex func() (lattice.Index, error)) error {
	s, err := smoketest.LoadScenario(filename)
	if err != nil {
		return err
	}

	idx, err := newIndex()
	if err != nil {
		return errors.New("creating scenario lattice failed").Wrap(err)
	}

	res, err := smoketest.Run(ctx, idx, s)
	logSmokeTestResult(res)
	if err != nil && ctx.Err() == nil {
		return errors.New("startup scenario failed").
			WithTag("scenario", s.Name).
			Wrap(err)
	}
	return nil
}

func logSmokeTestResult(res smoketest.Results) {
	logs.WithTag("scenario", res.Scenario).
		WithTag("status", res.Status).
		WithTag("inserted", res.Inserted).
		WithTag("removed", res.Removed).
		WithTag("queries", res.Queries).
		WithTag("ticks", res.Ticks).
		WithTag("objects", res.Objects).
		WithTag("sublattices", res.Lattice.SubLattices).
		WithTag("duration_ms", res.DurationMilliSec).
		Info("smoke test result")
}

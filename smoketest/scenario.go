package smoketest

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ErrTypeInvalidScenario = "smoketest_invalid_scenario"
)

// Scenario describes a workload run against an index.
type Scenario struct {
	Name string `toml:"name" yaml:"name" json:"name"`

	// The number of concurrent workers.
	Workers int `toml:"workers" yaml:"workers" json:"workers"`

	// The number of objects each worker inserts.
	Objects int `toml:"objects" yaml:"objects" json:"objects"`

	// Objects are inserted at random positions within [-Spread, Spread) on
	// every axis.
	Spread int64 `toml:"spread" yaml:"spread" json:"spread"`

	// Positions where several objects are inserted at once, which forces
	// sub-lattices.
	Hotspots []Hotspot `toml:"hotspots" yaml:"hotspots" json:"hotspots"`

	// The number of point and sphere queries each worker runs.
	Queries int `toml:"queries" yaml:"queries" json:"queries"`

	// The radius of sphere queries.
	Radius uint64 `toml:"radius" yaml:"radius" json:"radius"`

	// The share of inserted objects removed afterwards, between 0 and 1.
	RemoveRatio float64 `toml:"remove_ratio" yaml:"remove_ratio" json:"remove_ratio"`

	// The number of tick passes run once every worker is done. Objects
	// inserted with a velocity drift during those ticks.
	Ticks int `toml:"ticks" yaml:"ticks" json:"ticks"`

	// The maximum absolute velocity on every axis.
	Velocity int64 `toml:"velocity" yaml:"velocity" json:"velocity"`

	Seed    int64         `toml:"seed" yaml:"seed" json:"seed"`
	Timeout time.Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

type Hotspot struct {
	X     int64 `toml:"x" yaml:"x" json:"x"`
	Y     int64 `toml:"y" yaml:"y" json:"y"`
	Z     int64 `toml:"z" yaml:"z" json:"z"`
	Count int   `toml:"count" yaml:"count" json:"count"`
}

// DefaultScenario returns a small scenario exercising subdivisions,
// sub-lattices and ticks.
func DefaultScenario() Scenario {
	return Scenario{
		Name:        "default",
		Workers:     8,
		Objects:     256,
		Spread:      1 << 20,
		Hotspots:    []Hotspot{{X: 42, Y: 42, Z: 42, Count: 32}},
		Queries:     128,
		Radius:      1 << 16,
		RemoveRatio: 0.25,
		Ticks:       4,
		Velocity:    8,
		Seed:        1,
		Timeout:     time.Minute,
	}
}

// LoadScenario reads a scenario from a TOML or YAML file, picked by its
// extension. Unset fields keep their default value.
func LoadScenario(filename string) (Scenario, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return Scenario{}, errors.New("reading scenario file failed").
			WithTag("filename", filename).
			Wrap(err)
	}

	s := DefaultScenario()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".toml":
		err = toml.Unmarshal(b, &s)

	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &s)

	default:
		return Scenario{}, errors.New("unsupported scenario file extension").
			WithType(ErrTypeInvalidScenario).
			WithTag("filename", filename).
			WithTag("extension", ext)
	}
	if err != nil {
		return Scenario{}, errors.New("decoding scenario file failed").
			WithType(ErrTypeInvalidScenario).
			WithTag("filename", filename).
			Wrap(err)
	}

	return s, s.Validate()
}

func (s Scenario) Validate() error {
	switch {
	case s.Workers < 1:
		return errors.New("workers must be greater than zero").
			WithType(ErrTypeInvalidScenario).
			WithTag("workers", s.Workers)

	case s.Objects < 0 || s.Queries < 0 || s.Ticks < 0:
		return errors.New("counts must not be negative").
			WithType(ErrTypeInvalidScenario)

	case s.Spread < 1:
		return errors.New("spread must be greater than zero").
			WithType(ErrTypeInvalidScenario).
			WithTag("spread", s.Spread)

	case s.RemoveRatio < 0 || s.RemoveRatio > 1:
		return errors.New("remove ratio must be between 0 and 1").
			WithType(ErrTypeInvalidScenario).
			WithTag("remove_ratio", s.RemoveRatio)

	case s.Velocity < 0:
		return errors.New("velocity must not be negative").
			WithType(ErrTypeInvalidScenario).
			WithTag("velocity", s.Velocity)
	}

	for _, h := range s.Hotspots {
		if h.Count < 0 {
			return errors.New("hotspot count must not be negative").
				WithType(ErrTypeInvalidScenario).
				WithTag("count", h.Count)
		}
	}
	return nil
}

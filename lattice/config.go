package lattice

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	DefaultCapacity = 8
	DefaultMaxDepth = 16

	// NoSubLattices is the MaxDepth of a lattice that never embeds a
	// sub-lattice. Its full unit leaves admit objects beyond their capacity.
	NoSubLattices = -1
)

// Visibility defines when an inserted object shows up in queries.
type Visibility int

const (
	// VisibleImmediately makes an object queryable as soon as it is inserted,
	// before its insertion is committed.
	VisibleImmediately Visibility = iota

	// VisibleAfterCommit hides an object from queries until its insertion is
	// committed.
	VisibleAfterCommit
)

func (v Visibility) String() string {
	if v == VisibleAfterCommit {
		return "after_commit"
	}
	return "immediately"
}

// Config is the configuration of a lattice.
type Config struct {
	// The number of occupants a leaf holds before being subdivided.
	Capacity int

	// The maximum number of nested sub-lattices. A full unit leaf at that
	// depth admits objects beyond its capacity. Zero means DefaultMaxDepth
	// and NoSubLattices disables embedding.
	MaxDepth int

	Visibility Visibility

	// Records the time spent waiting for node and object locks.
	TrackLockWaits bool

	// Diagnostic hooks, nil in production.
	Hooks Hooks

	// The subdivision strategy. Defaults to ParentFirst.
	Strategy Strategy
}

// Validate checks the configuration and fills the defaults of unset fields.
func (c *Config) Validate() error {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Capacity < 0 {
		return errors.New("capacity must be greater than zero").
			WithType(ErrTypeInvalidConfig).
			WithTag("capacity", c.Capacity)
	}

	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxDepth < NoSubLattices {
		return errors.New("max depth must not be lower than -1").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_depth", c.MaxDepth)
	}

	switch c.Visibility {
	case VisibleImmediately, VisibleAfterCommit:
	default:
		return errors.New("unknown visibility").
			WithType(ErrTypeInvalidConfig).
			WithTag("visibility", int(c.Visibility))
	}

	if c.Strategy == nil {
		c.Strategy = ParentFirst
	}
	return nil
}

package featureflag

type Flag string

const (
	// Records the time spent waiting for lattice locks.
	FlagTrackLockWaits Flag = "TRACK_LOCK_WAITS"

	// Hides inserted objects from queries until their insertion is
	// committed.
	FlagVisibleAfterCommit Flag = "VISIBLE_AFTER_COMMIT"

	// Stops the frame loop from ticking the lattice.
	FlagDisableTick Flag = "DISABLE_TICK"
)

var knownFlags = map[Flag]struct{}{
	FlagTrackLockWaits:     {},
	FlagVisibleAfterCommit: {},
	FlagDisableTick:        {},
}

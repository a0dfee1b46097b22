package lattice

// HookPoint is a point of the subdivision and tick protocols where
// diagnostic hooks are invoked.
type HookPoint int

const (
	// HookSubdivideStart is reached when a subdivision is requested, before
	// any subdivision lock is acquired.
	HookSubdivideStart HookPoint = iota

	// HookAfterLeafLock is reached by an insertion right after it locked its
	// target leaf.
	HookAfterLeafLock

	// HookBeforeDispatch is reached with the subdivision locks held, before
	// the occupants are dispatched to the new children.
	HookBeforeDispatch

	// HookTickStart is reached at the start of a tick pass.
	HookTickStart
)

func (p HookPoint) String() string {
	switch p {
	case HookSubdivideStart:
		return "subdivide_start"
	case HookAfterLeafLock:
		return "after_leaf_lock"
	case HookBeforeDispatch:
		return "before_dispatch"
	case HookTickStart:
		return "tick_start"
	default:
		return "unknown"
	}
}

// Hooks lets tests observe and pause the lattice at given protocol points.
// At may block to force an interleaving. Hooks never change the outcome of
// an operation.
type Hooks interface {
	At(p HookPoint)
}

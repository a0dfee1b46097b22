package lattice

const (
	// ErrTypeContainmentViolated is the type of the errors panicked with when
	// an object does not belong to the node it is routed to. It means the
	// structure is corrupted and cannot be used anymore.
	ErrTypeContainmentViolated = "lattice_containment_violated"

	ErrTypeInvalidConfig = "lattice_invalid_config"
)

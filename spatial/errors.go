package spatial

const (
	// ErrTypeInvalidBounds is the error type returned when a region or a
	// transform is built from bounds that do not describe a volume.
	ErrTypeInvalidBounds = "spatial_invalid_bounds"

	// ErrTypeOutOfRange is the error type returned when a position lies outside
	// the bounds a transform was declared with.
	ErrTypeOutOfRange = "spatial_out_of_range"
)

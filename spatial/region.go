package spatial

import (
	"fmt"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// OctantCount is the number of children a region splits into.
const OctantCount = 8

// Universe is the coordinate system of every lattice: the whole int64 range on
// each axis, half-open on the max side.
var Universe = Region{
	Min: Vector3{math.MinInt64, math.MinInt64, math.MinInt64},
	Max: Vector3{math.MaxInt64, math.MaxInt64, math.MaxInt64},
}

// Region is an immutable axis-aligned box covering [Min, Max) on every axis.
type Region struct {
	Min Vector3 `json:"min"`
	Max Vector3 `json:"max"`
}

// Extent is the number of integer positions a region covers on each axis.
type Extent struct {
	X uint64
	Y uint64
	Z uint64
}

func (e Extent) Axis(i int) uint64 {
	switch i {
	case 0:
		return e.X
	case 1:
		return e.Y
	default:
		return e.Z
	}
}

// NewRegion returns the region [min, max). It fails with ErrTypeInvalidBounds
// when min is not strictly lower than max on every axis.
func NewRegion(min, max Vector3) (Region, error) {
	for i := 0; i < axisCount; i++ {
		if min.Axis(i) >= max.Axis(i) {
			return Region{}, errors.New("region min must be lower than max").
				WithType(ErrTypeInvalidBounds).
				WithTag("min", min.String()).
				WithTag("max", max.String()).
				WithTag("axis", i)
		}
	}
	return Region{Min: min, Max: max}, nil
}

// Mid returns the floor average of Min and Max on every axis.
func (r Region) Mid() Vector3 {
	return Vector3{
		X: midpoint(r.Min.X, r.Max.X),
		Y: midpoint(r.Min.Y, r.Max.Y),
		Z: midpoint(r.Min.Z, r.Max.Z),
	}
}

// midpoint is floor((a+b)/2) without overflow, for any sign of a and b.
func midpoint(a, b int64) int64 {
	return (a & b) + ((a ^ b) >> 1)
}

func (r Region) Size() Extent {
	return Extent{
		X: uint64(r.Max.X) - uint64(r.Min.X),
		Y: uint64(r.Max.Y) - uint64(r.Min.Y),
		Z: uint64(r.Max.Z) - uint64(r.Min.Z),
	}
}

func (r Region) Contains(p Vector3) bool {
	return p.X >= r.Min.X && p.X < r.Max.X &&
		p.Y >= r.Min.Y && p.Y < r.Max.Y &&
		p.Z >= r.Min.Z && p.Z < r.Max.Z
}

// IsUnit reports whether the region covers a single position. Such a region
// is at the resolution floor and can no longer be split.
func (r Region) IsUnit() bool {
	s := r.Size()
	return s.X == 1 && s.Y == 1 && s.Z == 1
}

// Octant returns the index of the child holding p: bit 2 is set when
// x >= Mid.X, bit 1 for y and bit 0 for z.
func (r Region) Octant(p Vector3) int {
	mid := r.Mid()

	var o int
	if p.X >= mid.X {
		o |= 4
	}
	if p.Y >= mid.Y {
		o |= 2
	}
	if p.Z >= mid.Z {
		o |= 1
	}
	return o
}

// Child returns the bounds of the given octant. The boolean is false when the
// octant has no volume, which happens on axes of size 1 where Mid equals Min.
func (r Region) Child(octant int) (Region, bool) {
	mid := r.Mid()

	var c Region
	for i := 0; i < axisCount; i++ {
		bit := 4 >> i
		if octant&bit != 0 {
			c.Min.SetAxis(i, mid.Axis(i))
			c.Max.SetAxis(i, r.Max.Axis(i))
		} else {
			c.Min.SetAxis(i, r.Min.Axis(i))
			c.Max.SetAxis(i, mid.Axis(i))
		}

		if c.Min.Axis(i) >= c.Max.Axis(i) {
			return Region{}, false
		}
	}
	return c, true
}

// Split returns the regions of the non-empty octants, keyed by octant index.
func (r Region) Split() map[int]Region {
	children := make(map[int]Region, OctantCount)
	for o := 0; o < OctantCount; o++ {
		if c, ok := r.Child(o); ok {
			children[o] = c
		}
	}
	return children
}

// DistanceTo returns, per axis, how far p is from the closest position of the
// region. It is zero on axes where p lies within the bounds.
func (r Region) DistanceTo(p Vector3) [axisCount]uint64 {
	var d [axisCount]uint64
	for i := 0; i < axisCount; i++ {
		v := p.Axis(i)
		switch {
		case v < r.Min.Axis(i):
			d[i] = absDiff(r.Min.Axis(i), v)
		case v >= r.Max.Axis(i):
			d[i] = absDiff(v, r.Max.Axis(i)-1)
		}
	}
	return d
}

func (r Region) String() string {
	return fmt.Sprintf("[%s,%s)", r.Min, r.Max)
}

package spatial

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

// jitter salts keep the per-axis discriminators of a GUID independent.
var axisSalts = [axisCount]uint64{
	0x243f6a8885a308d3,
	0x13198a2e03707344,
	0xa4093822299f31d0,
}

// Transform maps positions and velocities between the declared bounds of an
// outer lattice region and the full-range space of the lattice embedded in it.
//
// Every outer position o owns the inner cell
// [ceil(o*in/out), ceil((o+1)*in/out)) on each axis, in offsets from the
// respective Min. Any inner position of that cell maps back to o.
type Transform struct {
	outer Region
	inner Region
}

// NewTransform returns the transform between outer and inner. The inner
// region must be at least as large as the outer one on every axis.
func NewTransform(outer, inner Region) (Transform, error) {
	outerSize := outer.Size()
	innerSize := inner.Size()

	for i := 0; i < axisCount; i++ {
		if outerSize.Axis(i) == 0 || innerSize.Axis(i) < outerSize.Axis(i) {
			return Transform{}, errors.New("inner region must be larger than outer region").
				WithType(ErrTypeInvalidBounds).
				WithTag("outer", outer.String()).
				WithTag("inner", inner.String()).
				WithTag("axis", i)
		}
	}

	return Transform{
		outer: outer,
		inner: inner,
	}, nil
}

// NewEmbeddingTransform returns the transform from outer to the lattice
// universe.
func NewEmbeddingTransform(outer Region) (Transform, error) {
	return NewTransform(outer, Universe)
}

func (t Transform) Outer() Region {
	return t.outer
}

func (t Transform) Inner() Region {
	return t.inner
}

// OuterToInnerCanonical maps pos to the first inner position of its cell.
func (t Transform) OuterToInnerCanonical(pos Vector3) (Vector3, error) {
	if !t.outer.Contains(pos) {
		return Vector3{}, t.outOfRange("outer", pos)
	}

	outerSize := t.outer.Size()
	innerSize := t.inner.Size()

	var res Vector3
	for i := 0; i < axisCount; i++ {
		offset := uint64(pos.Axis(i)) - uint64(t.outer.Min.Axis(i))
		start := scaleUp(offset, outerSize.Axis(i), innerSize.Axis(i))
		res.SetAxis(i, int64(uint64(t.inner.Min.Axis(i))+start))
	}
	return res, nil
}

// OuterToInnerInsertion maps pos to an inner position of its cell selected by
// a hash of guid. On an axis where the outer region has size 1, the cell is the
// whole inner axis, so coincident outer positions spread over the inner
// lattice instead of piling up. The result only depends on pos and guid.
func (t Transform) OuterToInnerInsertion(pos Vector3, guid uuid.UUID) (Vector3, error) {
	if !t.outer.Contains(pos) {
		return Vector3{}, t.outOfRange("outer", pos)
	}

	outerSize := t.outer.Size()
	innerSize := t.inner.Size()

	var res Vector3
	for i := 0; i < axisCount; i++ {
		offset := uint64(pos.Axis(i)) - uint64(t.outer.Min.Axis(i))
		start := scaleUp(offset, outerSize.Axis(i), innerSize.Axis(i))
		end := scaleUp(offset+1, outerSize.Axis(i), innerSize.Axis(i))

		jitter := Discriminator(guid, i) % (end - start)
		res.SetAxis(i, int64(uint64(t.inner.Min.Axis(i))+start+jitter))
	}
	return res, nil
}

// InnerToOuter maps an inner position back to the outer position whose cell
// contains it.
func (t Transform) InnerToOuter(pos Vector3) (Vector3, error) {
	if !t.inner.Contains(pos) {
		return Vector3{}, t.outOfRange("inner", pos)
	}

	outerSize := t.outer.Size()
	innerSize := t.inner.Size()

	var res Vector3
	for i := 0; i < axisCount; i++ {
		offset := uint64(pos.Axis(i)) - uint64(t.inner.Min.Axis(i))
		o := scaleDown(offset, innerSize.Axis(i), outerSize.Axis(i))
		res.SetAxis(i, int64(uint64(t.outer.Min.Axis(i))+o))
	}
	return res, nil
}

// VelocityOuterToInner scales v by the inner/outer extent ratio. Magnitudes
// are rounded up so that VelocityInnerToOuter restores v, and clamped to the
// int64 range.
func (t Transform) VelocityOuterToInner(v Vector3) Vector3 {
	outerSize := t.outer.Size()
	innerSize := t.inner.Size()

	var res Vector3
	for i := 0; i < axisCount; i++ {
		res.SetAxis(i, scaleVelocityUp(v.Axis(i), outerSize.Axis(i), innerSize.Axis(i)))
	}
	return res
}

// VelocityInnerToOuter scales v by the outer/inner extent ratio, truncating
// toward zero.
func (t Transform) VelocityInnerToOuter(v Vector3) Vector3 {
	outerSize := t.outer.Size()
	innerSize := t.inner.Size()

	var res Vector3
	for i := 0; i < axisCount; i++ {
		m := scaleDown(magnitude(v.Axis(i)), innerSize.Axis(i), outerSize.Axis(i))
		res.SetAxis(i, signed(m, v.Axis(i) < 0))
	}
	return res
}

func (t Transform) outOfRange(side string, pos Vector3) error {
	bounds := t.outer
	if side == "inner" {
		bounds = t.inner
	}

	return errors.New("position is out of transform range").
		WithType(ErrTypeOutOfRange).
		WithTag("side", side).
		WithTag("position", pos.String()).
		WithTag("bounds", bounds.String())
}

// Discriminator returns the hash of guid used to separate coincident
// positions on the given axis. The GUID is split in two 64-bit halves mixed
// with SplitMix64.
func Discriminator(guid uuid.UUID, axis int) uint64 {
	hi := binary.BigEndian.Uint64(guid[:8])
	lo := binary.BigEndian.Uint64(guid[8:])
	return splitMix64(hi ^ splitMix64(lo^axisSalts[axis]))
}

func scaleVelocityUp(v int64, from, to uint64) int64 {
	m := magnitude(v)
	if m == 0 {
		return 0
	}

	// m*to/from does not fit 64 bits: saturate.
	if hi, _ := bits.Mul64(m, to); hi >= from {
		return signed(math.MaxUint64, v < 0)
	}
	return signed(ceilDiv(m, to, from), v < 0)
}

// signed returns m with the given sign, clamped to the int64 range.
func signed(m uint64, negative bool) int64 {
	if negative {
		if m >= 1<<63 {
			return math.MinInt64
		}
		return -int64(m)
	}
	if m > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(m)
}

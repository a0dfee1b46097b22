package spatial

import "math/bits"

// uint128 is the exact square of a distance along one axis. Squared
// distances never go through floating point.
type uint128 struct {
	hi uint64
	lo uint64
}

func square(v uint64) uint128 {
	hi, lo := bits.Mul64(v, v)
	return uint128{hi: hi, lo: lo}
}

// add returns a+b and whether the sum overflowed 128 bits.
func (a uint128) add(b uint128) (uint128, bool) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, carry := bits.Add64(a.hi, b.hi, carry)
	return uint128{hi: hi, lo: lo}, carry != 0
}

func (a uint128) lessOrEqual(b uint128) bool {
	if a.hi != b.hi {
		return a.hi < b.hi
	}
	return a.lo <= b.lo
}

// withinRadius reports whether the euclidean length of the given per-axis
// distances is at most radius.
func withinRadius(d [axisCount]uint64, radius uint64) bool {
	limit := square(radius)

	var sum uint128
	for _, v := range d {
		var overflow bool
		if sum, overflow = sum.add(square(v)); overflow {
			return false
		}
	}
	return sum.lessOrEqual(limit)
}

// scaleUp returns ceil(offset*to/from). offset must be lower or equal than
// from and from must be lower or equal than to.
func scaleUp(offset, from, to uint64) uint64 {
	hi, lo := bits.Mul64(offset, to)
	if offset == from {
		return to
	}
	q, rem := bits.Div64(hi, lo, from)
	if rem != 0 {
		q++
	}
	return q
}

// scaleDown returns floor(offset*to/from) where from >= to.
func scaleDown(offset, from, to uint64) uint64 {
	hi, lo := bits.Mul64(offset, to)
	q, _ := bits.Div64(hi, lo, from)
	return q
}

// splitMix64 is the SplitMix64 finalizer: an avalanche mix where every input
// bit affects every output bit.
func splitMix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ceilDiv returns ceil(a*b/c). a*b/c must fit 64 bits.
func ceilDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, rem := bits.Div64(hi, lo, c)
	if rem != 0 && q != ^uint64(0) {
		q++
	}
	return q
}

package spatial

import (
	"fmt"
	"math"
)

const axisCount = 3

type Vector3 struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	Z int64 `json:"z"`
}

func NewVector3(x, y, z int64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Axis returns the coordinate on axis i, 0 being X and 2 being Z.
func (v Vector3) Axis(i int) int64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func (v *Vector3) SetAxis(i int, value int64) {
	switch i {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
}

func (v Vector3) Equal(o Vector3) bool {
	return v.X == o.X && v.Y == o.Y && v.Z == o.Z
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

// Add returns a+b with every axis clamped to the int64 range instead of
// wrapping around.
func Add(a, b Vector3) Vector3 {
	var r Vector3
	for i := 0; i < axisCount; i++ {
		r.SetAxis(i, saturatingAdd(a.Axis(i), b.Axis(i)))
	}
	return r
}

func saturatingAdd(a, b int64) int64 {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}

// absDiff returns |a-b|. The result always fits an uint64.
func absDiff(a, b int64) uint64 {
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

// magnitude returns |v| as an uint64, MinInt64 included.
func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(^v) + 1
	}
	return uint64(v)
}

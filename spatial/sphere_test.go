package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSphereContains(t *testing.T) {
	s := Sphere{Center: Vector3{0, 0, 0}, Radius: 5}

	require.True(t, s.Contains(Vector3{0, 0, 0}))
	require.True(t, s.Contains(Vector3{3, 4, 0}))
	require.True(t, s.Contains(Vector3{0, -5, 0}))
	require.False(t, s.Contains(Vector3{3, 4, 1}))
	require.False(t, s.Contains(Vector3{math.MaxInt64, 0, 0}))
}

func TestSphereContainsExtremes(t *testing.T) {
	s := Sphere{Center: Vector3{math.MinInt64, math.MinInt64, math.MinInt64}, Radius: math.MaxUint64}

	require.True(t, s.Contains(Vector3{math.MaxInt64, math.MinInt64, math.MinInt64}))
	require.False(t, s.Contains(Vector3{math.MaxInt64, math.MaxInt64, math.MaxInt64}))
}

func TestSphereIntersects(t *testing.T) {
	r := mustRegion(t, Vector3{10, 10, 10}, Vector3{20, 20, 20})

	require.True(t, Sphere{Center: Vector3{15, 15, 15}, Radius: 0}.Intersects(r))
	require.True(t, Sphere{Center: Vector3{7, 10, 10}, Radius: 3}.Intersects(r))
	require.False(t, Sphere{Center: Vector3{7, 10, 10}, Radius: 2}.Intersects(r))
	require.True(t, Sphere{Center: Vector3{21, 20, 19}, Radius: 3}.Intersects(r))
	require.False(t, Sphere{Center: Vector3{21, 20, 19}, Radius: 2}.Intersects(r))
	require.False(t, Sphere{Center: Vector3{22, 22, 22}, Radius: 3}.Intersects(r))
}

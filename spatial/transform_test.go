package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewTransform(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		outer := mustRegion(t, Vector3{0, 0, 0}, Vector3{8, 8, 8})
		tr, err := NewEmbeddingTransform(outer)
		require.NoError(t, err)
		require.Equal(t, outer, tr.Outer())
		require.Equal(t, Universe, tr.Inner())
	})

	t.Run("inner smaller than outer", func(t *testing.T) {
		outer := mustRegion(t, Vector3{0, 0, 0}, Vector3{8, 8, 8})
		inner := mustRegion(t, Vector3{0, 0, 0}, Vector3{4, 8, 8})
		_, err := NewTransform(outer, inner)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidBounds))
	})
}

func TestTransformCanonical(t *testing.T) {
	outer := mustRegion(t, Vector3{-4, 0, 100}, Vector3{4, 3, 101})
	tr, err := NewEmbeddingTransform(outer)
	require.NoError(t, err)

	t.Run("bounds map to bounds", func(t *testing.T) {
		p, err := tr.OuterToInnerCanonical(outer.Min)
		require.NoError(t, err)
		require.Equal(t, Universe.Min, p)
	})

	t.Run("round trip", func(t *testing.T) {
		for x := outer.Min.X; x < outer.Max.X; x++ {
			for y := outer.Min.Y; y < outer.Max.Y; y++ {
				p := Vector3{x, y, 100}

				inner, err := tr.OuterToInnerCanonical(p)
				require.NoError(t, err)
				require.True(t, Universe.Contains(inner))

				back, err := tr.InnerToOuter(inner)
				require.NoError(t, err)
				require.Equal(t, p, back)
			}
		}
	})

	t.Run("monotonic", func(t *testing.T) {
		a, err := tr.OuterToInnerCanonical(Vector3{-1, 0, 100})
		require.NoError(t, err)
		b, err := tr.OuterToInnerCanonical(Vector3{0, 0, 100})
		require.NoError(t, err)
		require.Less(t, a.X, b.X)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := tr.OuterToInnerCanonical(Vector3{4, 0, 100})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeOutOfRange))
	})
}

func TestTransformInnerToOuterOutOfRange(t *testing.T) {
	outer := mustRegion(t, Vector3{0, 0, 0}, Vector3{2, 2, 2})
	inner := mustRegion(t, Vector3{0, 0, 0}, Vector3{16, 16, 16})
	tr, err := NewTransform(outer, inner)
	require.NoError(t, err)

	_, err = tr.InnerToOuter(Vector3{16, 0, 0})
	require.Error(t, err)
	require.Equal(t, ErrTypeOutOfRange, errors.Type(err))

	p, err := tr.InnerToOuter(Vector3{15, 7, 8})
	require.NoError(t, err)
	require.Equal(t, Vector3{1, 0, 1}, p)
}

func TestTransformInsertion(t *testing.T) {
	outer := mustRegion(t, Vector3{-8, -8, -8}, Vector3{8, 8, 8})
	tr, err := NewEmbeddingTransform(outer)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		guid := uuid.New()
		p := Vector3{rnd.Int63n(16) - 8, rnd.Int63n(16) - 8, rnd.Int63n(16) - 8}

		inner, err := tr.OuterToInnerInsertion(p, guid)
		require.NoError(t, err)

		again, err := tr.OuterToInnerInsertion(p, guid)
		require.NoError(t, err)
		require.Equal(t, inner, again)

		back, err := tr.InnerToOuter(inner)
		require.NoError(t, err)
		require.Equal(t, p, back)
	}

	_, err = tr.OuterToInnerInsertion(Vector3{8, 0, 0}, uuid.New())
	require.True(t, errors.IsType(err, ErrTypeOutOfRange))
}

func TestTransformInsertionSpread(t *testing.T) {
	const (
		guidCount = 10000
		binCount  = 16
	)

	unit := mustRegion(t, Vector3{5, 5, 5}, Vector3{6, 6, 6})
	tr, err := NewEmbeddingTransform(unit)
	require.NoError(t, err)

	var minInt64 int64 = math.MinInt64
	seen := make(map[Vector3]struct{}, guidCount)
	observed := make([][]float64, axisCount)
	for i := range observed {
		observed[i] = make([]float64, binCount)
	}

	for i := 0; i < guidCount; i++ {
		inner, err := tr.OuterToInnerInsertion(unit.Min, uuid.New())
		require.NoError(t, err)
		seen[inner] = struct{}{}

		for axis := 0; axis < axisCount; axis++ {
			offset := uint64(inner.Axis(axis)) - uint64(minInt64)
			observed[axis][offset/(math.MaxUint64/binCount+1)]++
		}
	}
	require.Len(t, seen, guidCount)

	expected := make([]float64, binCount)
	for i := range expected {
		expected[i] = guidCount / binCount
	}

	// 15 degrees of freedom: 37.7 is the 0.999 quantile.
	for axis := 0; axis < axisCount; axis++ {
		chi := stat.ChiSquare(observed[axis], expected)
		require.Less(t, chi, 37.7, "axis %d bins %v", axis, observed[axis])
	}
}

func TestDiscriminator(t *testing.T) {
	guid := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	require.Equal(t, Discriminator(guid, 0), Discriminator(guid, 0))
	require.NotEqual(t, Discriminator(guid, 0), Discriminator(guid, 1))
	require.NotEqual(t, Discriminator(guid, 1), Discriminator(guid, 2))
}

func TestTransformVelocity(t *testing.T) {
	outer := mustRegion(t, Vector3{0, 0, 0}, Vector3{1 << 40, 1 << 40, 1 << 40})
	tr, err := NewEmbeddingTransform(outer)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		for _, v := range []Vector3{{0, 0, 0}, {1, -1, 3}, {-1000, 77, 1 << 20}} {
			inner := tr.VelocityOuterToInner(v)
			require.Equal(t, v, tr.VelocityInnerToOuter(inner))
		}
	})

	t.Run("scales by extent ratio", func(t *testing.T) {
		inner := tr.VelocityOuterToInner(Vector3{1, 0, -1})
		require.Equal(t, int64(1<<24), inner.X)
		require.Equal(t, int64(0), inner.Y)
		require.Equal(t, -int64(1<<24), inner.Z)
	})

	t.Run("saturates", func(t *testing.T) {
		inner := tr.VelocityOuterToInner(Vector3{math.MaxInt64, math.MinInt64, 0})
		require.Equal(t, int64(math.MaxInt64), inner.X)
		require.Equal(t, int64(math.MinInt64), inner.Y)
	})
}

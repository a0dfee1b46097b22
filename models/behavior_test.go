package models

import (
	"math"
	"testing"

	"github.com/aukilabs/lattice/spatial"
	"github.com/stretchr/testify/require"
)

func TestDrift(t *testing.T) {
	tests := []struct {
		name     string
		position spatial.Vector3
		velocity spatial.Vector3
		expected Action
	}{
		{
			name:     "still",
			position: spatial.NewVector3(1, 2, 3),
			expected: Stay(),
		},
		{
			name:     "moving",
			position: spatial.NewVector3(1, 2, 3),
			velocity: spatial.NewVector3(1, -1, 10),
			expected: MoveTo(spatial.NewVector3(2, 1, 13)),
		},
		{
			name:     "saturating",
			position: spatial.NewVector3(math.MaxInt64-1, 0, 0),
			velocity: spatial.NewVector3(5, 0, 0),
			expected: MoveTo(spatial.NewVector3(math.MaxInt64, 0, 0)),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			o := NewObject(test.position, WithVelocity(test.velocity))
			require.Equal(t, test.expected, Drift{}.Tick(o, 1))
		})
	}
}

func TestExpire(t *testing.T) {
	e := &Expire{Ticks: 3}
	o := NewObject(spatial.Vector3{}, WithBehavior(e))

	require.Equal(t, ActionNone, e.Tick(o, 1).Kind)
	require.Equal(t, ActionNone, e.Tick(o, 2).Kind)
	require.Equal(t, ActionRemove, e.Tick(o, 3).Kind)
}

func TestBehaviors(t *testing.T) {
	o := NewObject(spatial.Vector3{}, WithVelocity(spatial.NewVector3(1, 1, 1)))

	b := Behaviors{&Expire{Ticks: 2}, Drift{}}
	require.Equal(t, MoveTo(spatial.NewVector3(1, 1, 1)), b.Tick(o, 1))
	require.Equal(t, Remove(), b.Tick(o, 2))
}

func TestActionKindString(t *testing.T) {
	require.Equal(t, "none", ActionNone.String())
	require.Equal(t, "move", ActionMove.String())
	require.Equal(t, "remove", ActionRemove.String())
}

package lattice

import (
	"sync"
	"testing"

	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/stretchr/testify/require"
)

// recorder records the ticks it receives and calls back into the lattice to
// make sure no lock is held while ticking.
type recorder struct {
	lattice *Lattice

	mutex sync.Mutex
	ticks []uint64
}

func (r *recorder) Tick(o *models.Object, tick uint64) models.Action {
	r.lattice.QueryPoint(o.Position())
	r.lattice.Len()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.ticks = append(r.ticks, tick)
	return models.Stay()
}

func TestTickDrift(t *testing.T) {
	l := newTestLattice(t, Config{Capacity: 1})
	o := insertAt(t, l, 0, 0, 0,
		models.WithVelocity(spatial.NewVector3(1, -2, 0)),
		models.WithBehavior(models.Drift{}),
	)
	still := insertAt(t, l, -50, -50, -50)

	summary := l.Tick()
	require.Equal(t, uint64(1), summary.Tick)
	require.Equal(t, 1, summary.Ticked)
	require.Equal(t, 1, summary.Moved)

	require.Equal(t, spatial.NewVector3(1, -2, 0), o.Position())
	found, ok := l.QueryPoint(spatial.NewVector3(1, -2, 0))
	require.True(t, ok)
	require.Same(t, o, found)

	_, ok = l.QueryPoint(spatial.NewVector3(0, 0, 0))
	require.False(t, ok)

	l.Tick()
	require.Equal(t, spatial.NewVector3(2, -4, 0), o.Position())
	require.Equal(t, spatial.NewVector3(-50, -50, -50), still.Position())
}

func TestTickExpire(t *testing.T) {
	l := newTestLattice(t, Config{})
	o := insertAt(t, l, 3, 3, 3, models.WithBehavior(&models.Expire{Ticks: 2}))

	require.Zero(t, l.Tick().Removed)
	_, ok := l.Lookup(o.GUID)
	require.True(t, ok)

	require.Equal(t, 1, l.Tick().Removed)
	_, ok = l.Lookup(o.GUID)
	require.False(t, ok)
	require.Zero(t, l.Len())
	require.Zero(t, l.Tick().Ticked)
}

func TestTickOutsideLocks(t *testing.T) {
	l := newTestLattice(t, Config{Capacity: 2})
	r := &recorder{lattice: l}

	p := spatial.NewVector3(9, 9, 9)
	for i := 0; i < 5; i++ {
		insertAt(t, l, p.X, p.Y, p.Z, models.WithBehavior(r))
	}
	require.Equal(t, 1, l.DebugInfo().SubLattices)

	require.Equal(t, 5, l.Tick().Ticked)
	require.Equal(t, 5, l.Tick().Ticked)
	require.Equal(t, []uint64{1, 1, 1, 1, 1, 2, 2, 2, 2, 2}, r.ticks)
}

func TestTickSkipsProvisionalObjects(t *testing.T) {
	l := newTestLattice(t, Config{Visibility: VisibleAfterCommit})
	o := models.NewObject(spatial.NewVector3(1, 1, 1), models.WithBehavior(models.Drift{}))

	res := l.Insert(o)
	require.Equal(t, Created, res.Status)
	require.Zero(t, l.Tick().Ticked)

	res.Pending.Commit()
	require.Equal(t, 1, l.Tick().Ticked)
}

func TestTickStartHook(t *testing.T) {
	g := newGate(HookTickStart)
	l := newTestLattice(t, Config{Hooks: g})

	done := make(chan TickSummary, 1)
	go func() {
		done <- l.Tick()
	}()

	g.wait(t)
	g.open()
	require.Equal(t, uint64(1), (<-done).Tick)
}

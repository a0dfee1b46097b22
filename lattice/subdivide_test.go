package lattice

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// gate blocks the first caller reaching its hook point until it is opened.
type gate struct {
	point   HookPoint
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGate(p HookPoint) *gate {
	g := &gate{
		point:   p,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	g.armed.Store(true)
	return g
}

func (g *gate) At(p HookPoint) {
	if p != g.point || !g.armed.CompareAndSwap(true, false) {
		return
	}

	close(g.reached)
	<-g.release
}

func (g *gate) wait(t *testing.T) {
	select {
	case <-g.reached:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "hook point not reached", g.point.String())
	}
}

func (g *gate) open() {
	close(g.release)
}

// leafFirst locks the subdividing leaf before its parent. It deadlocks with
// descents holding the parent while they wait for the leaf.
type leafFirst struct {
	locked  chan struct{}
	proceed chan struct{}
}

func (s *leafFirst) lock(owner *locks.Owner, parent holder, l *leaf) func() {
	lg := l.lock.Lock(owner, locks.Write)
	s.locked <- struct{}{}
	<-s.proceed
	pg := parent.mutex().Lock(owner, locks.Write)

	return func() {
		pg.Release()
		lg.Release()
	}
}

func insertAsync(l *Lattice, o *models.Object) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		done <- l.Insert(o)
	}()
	return done
}

func requireResult(t *testing.T, done <-chan Result, status Status) {
	select {
	case res := <-done:
		require.Equal(t, status, res.Status)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "insertion did not complete")
	}
}

func TestRetiredLeafRejectsAdmission(t *testing.T) {
	l := newTestLattice(t, Config{Capacity: 1})
	a := insertAt(t, l, -10, -10, -10)
	original := l.root.top.(*leaf)

	insertAt(t, l, 10, 10, 10)
	require.True(t, original.retired)

	o := models.NewObject(spatial.NewVector3(-10, -10, -10))
	require.False(t, original.admitLocked(o))
	require.Empty(t, original.occupants)
	require.Nil(t, original.ticks)
	require.False(t, original.evictLocked(a))

	func() {
		defer func() {
			err, ok := recover().(error)
			require.True(t, ok)
			require.True(t, errors.IsType(err, ErrTypeContainmentViolated))
		}()
		original.mustAdmitLocked(o, o.Position())
	}()
	require.Empty(t, original.occupants)

	// Inserting where the retired leaf was reroutes to its replacement.
	require.Equal(t, Created, l.Insert(o).Status)
	require.Empty(t, original.occupants)

	loc, ok := l.Locate(o.GUID)
	require.True(t, ok)
	require.NotEqual(t, original.region, loc.Region)
}

func TestSubdivisionRaceIsNoop(t *testing.T) {
	g := newGate(HookSubdivideStart)
	l := newTestLattice(t, Config{Capacity: 1, Hooks: g})
	insertAt(t, l, -10, -10, -10)
	original := l.root.top.(*leaf)

	first := models.NewObject(spatial.NewVector3(10, 10, 10))
	firstDone := insertAsync(l, first)
	g.wait(t)

	// The second insertion subdivides the leaf while the first one waits
	// to do the same.
	second := models.NewObject(spatial.NewVector3(-10, 10, -10))
	require.Equal(t, Created, l.Insert(second).Status)
	require.True(t, original.retired)

	g.open()
	requireResult(t, firstDone, Created)

	require.EqualValues(t, 1, l.retired.Load())

	info := l.DebugInfo()
	require.Equal(t, 1, info.Branches)
	require.Equal(t, 3, info.Occupants)

	for _, o := range []*models.Object{first, second} {
		found, ok := l.QueryPoint(o.Position())
		require.True(t, ok)
		require.Equal(t, o.GUID, found.GUID)
	}
}

func TestQueryDuringSubdivision(t *testing.T) {
	g := newGate(HookBeforeDispatch)
	l := newTestLattice(t, Config{Capacity: 1, Hooks: g})
	a := insertAt(t, l, -10, -10, -10)

	done := insertAsync(l, models.NewObject(spatial.NewVector3(10, 10, 10)))
	g.wait(t)

	found := make(chan *models.Object, 1)
	go func() {
		o, _ := l.QueryPoint(a.Position())
		found <- o
	}()

	select {
	case <-found:
		require.FailNow(t, "query went through a subdivision in progress")
	case <-time.After(50 * time.Millisecond):
	}

	g.open()
	requireResult(t, done, Created)

	select {
	case o := <-found:
		require.NotNil(t, o)
		require.Equal(t, a.GUID, o.GUID)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "query did not complete")
	}
}

func TestAfterLeafLockHook(t *testing.T) {
	g := newGate(HookAfterLeafLock)
	l := newTestLattice(t, Config{Hooks: g})

	o := models.NewObject(spatial.NewVector3(1, 2, 3))
	done := insertAsync(l, o)
	g.wait(t)

	// The leaf is locked by the insertion: readers still get in.
	_, ok := l.QueryPoint(o.Position())
	require.False(t, ok)

	g.open()
	requireResult(t, done, Created)
}

func TestParentFirstWithConcurrentDescent(t *testing.T) {
	g := newGate(HookBeforeDispatch)
	l := newTestLattice(t, Config{Capacity: 1, Hooks: g})
	insertAt(t, l, -10, -10, -10)

	first := insertAsync(l, models.NewObject(spatial.NewVector3(10, 10, 10)))
	g.wait(t)

	second := insertAsync(l, models.NewObject(spatial.NewVector3(20, -20, 20)))
	time.Sleep(50 * time.Millisecond)

	g.open()
	requireResult(t, first, Created)
	requireResult(t, second, Created)
	require.Equal(t, 3, l.DebugInfo().Occupants)
}

func TestLeafFirstDeadlocksWithConcurrentDescent(t *testing.T) {
	s := &leafFirst{
		locked:  make(chan struct{}, 1),
		proceed: make(chan struct{}),
	}
	l := newTestLattice(t, Config{Capacity: 1, Strategy: s})
	insertAt(t, l, -10, -10, -10)

	first := insertAsync(l, models.NewObject(spatial.NewVector3(10, 10, 10)))
	<-s.locked

	// The descent holds the root and waits for the leaf, the subdivision
	// holds the leaf and waits for the root.
	second := insertAsync(l, models.NewObject(spatial.NewVector3(20, -20, 20)))
	time.Sleep(100 * time.Millisecond)
	close(s.proceed)

	select {
	case <-first:
		require.FailNow(t, "subdivision completed")
	case <-second:
		require.FailNow(t, "descent completed")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConcurrentInsertsIntoFullLeaf(t *testing.T) {
	l := newTestLattice(t, Config{Capacity: 8})

	// One occupant per octant of the universe, whose midpoint is -1.
	for octant := 0; octant < spatial.OctantCount; octant++ {
		insertAt(t, l, octantCoord(octant, 4, 0), octantCoord(octant, 2, 0), octantCoord(octant, 1, 0))
	}
	require.IsType(t, &leaf{}, l.root.top)

	const workers = 64
	objects := make([]*models.Object, workers)
	for i := range objects {
		octant := i % spatial.OctantCount
		d := int64(i + 1)
		objects[i] = models.NewObject(spatial.NewVector3(
			octantCoord(octant, 4, d),
			octantCoord(octant, 2, d),
			octantCoord(octant, 1, d),
		))
	}

	var g errgroup.Group
	for _, o := range objects {
		o := o
		g.Go(func() error {
			if res := l.Insert(o); res.Status != Created {
				return errors.Newf("unexpected insertion status %s", res.Status)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "concurrent insertions deadlocked")
	}

	require.Equal(t, workers+spatial.OctantCount, l.Len())

	info := l.DebugInfo()
	require.Equal(t, workers+spatial.OctantCount, info.Occupants)

	seen := make(map[*models.Object]int)
	l.Walk(func(o *models.Object) {
		seen[o]++
	})
	require.Len(t, seen, workers+spatial.OctantCount)
	for _, o := range objects {
		require.Equal(t, 1, seen[o])

		found, ok := l.QueryPoint(o.Position())
		require.True(t, ok)
		require.Same(t, o, found)
	}
}

func TestConcurrentOperationsOnCoincidentPositions(t *testing.T) {
	l := newTestLattice(t, Config{Capacity: 2})

	positions := []spatial.Vector3{
		{X: 7, Y: 7, Z: 7},
		{X: 7, Y: 7, Z: 8},
		{X: -7, Y: 7, Z: -7},
		{X: 1 << 62, Y: -(1 << 62), Z: 0},
	}

	const perPosition = 40
	objects := make([]*models.Object, 0, len(positions)*perPosition)
	for _, p := range positions {
		for i := 0; i < perPosition; i++ {
			objects = append(objects, models.NewObject(p))
		}
	}

	var g errgroup.Group
	for i, o := range objects {
		i, o := i, o
		g.Go(func() error {
			res := l.Insert(o)
			if res.Status != Created {
				return errors.Newf("unexpected insertion status %s", res.Status)
			}
			res.Pending.Commit()

			l.QueryPoint(o.Position())
			l.QuerySphere(spatial.Sphere{Center: o.Position(), Radius: 1})

			if i%4 == 0 {
				if s := l.Remove(o.GUID); s != Removed {
					return errors.Newf("unexpected removal status %s", s)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	expected := len(objects) - len(objects)/4
	require.Equal(t, expected, l.Len())

	info := l.DebugInfo()
	require.Equal(t, expected, info.Occupants)
	require.Equal(t, len(positions), info.SubLattices)

	for i, o := range objects {
		loc, ok := l.Locate(o.GUID)
		if i%4 == 0 {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		require.Equal(t, 1, loc.Depth)
	}

	for _, p := range positions {
		require.Len(t, l.QuerySphere(spatial.Sphere{Center: p}), perPosition-perPosition/4)
	}
}

func octantCoord(octant, bit int, d int64) int64 {
	if octant&bit != 0 {
		return 10 + d
	}
	return -10 - d
}

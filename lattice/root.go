package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
)

// Root is the top of a lattice. Every lattice covers the whole universe; a
// lattice embedded by a sub-lattice node sits one depth below the lattice
// holding that node.
type Root struct {
	lattice *Lattice
	depth   int
	lock    *locks.RWMutex
	top     node

	// The lattice embedding this one and the transform into this one. outer
	// is nil for the outermost lattice.
	outer     *Root
	embedding spatial.Transform
}

func newRoot(l *Lattice, depth int) *Root {
	r := &Root{
		lattice: l,
		depth:   depth,
		lock:    locks.New("root", l.config.TrackLockWaits),
	}
	r.top = newLeaf(r, spatial.Universe, r, 0)
	return r
}

func (r *Root) Depth() int {
	return r.depth
}

// embedded returns the embedded lattices from depth 1 down to r.
func (r *Root) embedded() []*Root {
	roots := make([]*Root, r.depth)
	for inner := r; inner.outer != nil; inner = inner.outer {
		roots[inner.depth-1] = inner
	}
	return roots
}

func (r *Root) mutex() *locks.RWMutex {
	return r.lock
}

func (r *Root) child(slot int) node {
	return r.top
}

func (r *Root) replace(slot int, n node) {
	r.top = n
}

// insert admits o at the position of f, expressed in the coordinates of the
// lattice. Locks are coupled on the way down: a child is locked before its
// parent is released.
func (r *Root) insert(owner *locks.Owner, o *models.Object, f models.Frame) {
	var parent holder = r
	slot := 0
	pg := r.lock.Lock(owner, locks.Read)
	n := r.top

	for {
		switch current := n.(type) {
		case *branch:
			g := current.lock.Lock(owner, locks.Read)
			pg.Release()

			child, octant := current.selectChildLocked(f.Position)
			parent, slot, pg, n = current, octant, g, child

		case *subLattice:
			pg.Release()
			current.inner.insert(owner, o, r.enter(owner, o, current, f))
			return

		case *leaf:
			g := current.lock.Lock(owner, locks.Upgradeable)
			pg.Release()
			r.lattice.hook(HookAfterLeafLock)

			if !current.region.Contains(f.Position) {
				g.Release()
				panic(containmentViolated(current.region, f.Position))
			}

			if current.retired {
				// Replaced by a concurrent subdivision.
				g.Release()
				pg = parent.mutex().Lock(owner, locks.Read)
				n = parent.child(slot)
				continue
			}

			if r.isFullLocked(current) {
				g.Release()
				r.subdivide(owner, parent, slot, current)
				pg = parent.mutex().Lock(owner, locks.Read)
				n = parent.child(slot)
				continue
			}

			g.Upgrade()
			defer g.Release()
			current.mustAdmitLocked(o, f.Position)
			return
		}
	}
}

// isFullLocked reports whether admitting one more occupant to l requires a
// subdivision. The leaf lock must be held.
func (r *Root) isFullLocked(l *leaf) bool {
	if len(l.occupants) < r.lattice.config.Capacity {
		return false
	}
	return !l.region.IsUnit() || r.depth < r.lattice.config.MaxDepth
}

// enter places o in the lattice embedded by s and returns its frame there.
func (r *Root) enter(owner *locks.Owner, o *models.Object, s *subLattice, f models.Frame) models.Frame {
	pos, err := s.transform.OuterToInnerInsertion(f.Position, o.GUID)
	if err != nil {
		panic(errors.New("object cannot enter sub-lattice").
			WithType(ErrTypeContainmentViolated).
			WithTag("guid", o.GUID).
			Wrap(err))
	}

	inner := models.Frame{
		Position: pos,
		Velocity: s.transform.VelocityOuterToInner(f.Velocity),
	}

	g := o.Mutex().Lock(owner, locks.Write)
	defer g.Release()

	o.PlaceLocked(r.depth+1, inner)
	return inner
}

// seek descends to the leaf holding o and calls fn with that leaf locked in
// the given mode. It returns false when o is not found.
func (r *Root) seek(owner *locks.Owner, o *models.Object, mode locks.Mode, fn func(r *Root, l *leaf) bool) bool {
	f, ok := frameAt(owner, o, r.depth)
	if !ok {
		return false
	}

	var parent holder = r
	slot := 0
	pg := r.lock.Lock(owner, locks.Read)
	n := r.top

	for {
		switch current := n.(type) {
		case *branch:
			g := current.lock.Lock(owner, locks.Read)
			pg.Release()

			child, octant := current.selectChildLocked(f.Position)
			parent, slot, pg, n = current, octant, g, child

		case *subLattice:
			pg.Release()
			return current.inner.seek(owner, o, mode, fn)

		case *leaf:
			g := current.lock.Lock(owner, mode)
			pg.Release()

			if current.retired {
				g.Release()
				pg = parent.mutex().Lock(owner, locks.Read)
				n = parent.child(slot)
				continue
			}

			defer g.Release()
			if current.occupants[o.GUID] != o {
				return false
			}
			return fn(r, current)
		}
	}
}

// visitor describes a traversal. keep prunes the nodes of the visited
// lattice by region; every node of a kept sub-lattice is visited.
type visitor struct {
	keep func(region spatial.Region) bool

	// Called with the leaf read lock held.
	leaf func(r *Root, l *leaf)

	// Called for every branch and sub-lattice node reached.
	node func(r *Root, n node)
}

// visit traverses the child at slot of parent.
func (r *Root) visit(owner *locks.Owner, parent holder, slot int, v visitor) {
	for {
		pg := parent.mutex().Lock(owner, locks.Read)
		n := parent.child(slot)
		if n == nil || (v.keep != nil && !v.keep(n.base().region)) {
			pg.Release()
			return
		}

		switch current := n.(type) {
		case *leaf:
			g := current.lock.Lock(owner, locks.Read)
			pg.Release()

			if current.retired {
				g.Release()
				continue
			}
			if v.leaf != nil {
				v.leaf(r, current)
			}
			g.Release()
			return

		case *branch:
			pg.Release()
			if v.node != nil {
				v.node(r, current)
			}
			for octant := range current.children {
				r.visit(owner, current, octant, v)
			}
			return

		case *subLattice:
			pg.Release()
			if v.node != nil {
				v.node(r, current)
			}
			inner := v
			inner.keep = nil
			current.inner.visit(owner, current.inner, 0, inner)
			return
		}
	}
}

func (r *Root) walk(owner *locks.Owner, v visitor) {
	r.visit(owner, r, 0, v)
}

func frameAt(owner *locks.Owner, o *models.Object, depth int) (models.Frame, bool) {
	g := o.Mutex().Lock(owner, locks.Read)
	defer g.Release()

	return o.FrameLocked(depth)
}

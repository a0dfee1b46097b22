package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
)

const (
	subdivisionSplit = "split"
	subdivisionEmbed = "embed"
)

// Strategy acquires the node locks protecting a subdivision and returns the
// function releasing them.
type Strategy interface {
	lock(owner *locks.Owner, parent holder, l *leaf) (unlock func())
}

// ParentFirst locks the parent of the subdividing leaf before the leaf, the
// same order every descent follows.
var ParentFirst Strategy = parentFirst{}

type parentFirst struct{}

func (parentFirst) lock(owner *locks.Owner, parent holder, l *leaf) func() {
	pg := parent.mutex().Lock(owner, locks.Write)
	lg := l.lock.Lock(owner, locks.Write)

	return func() {
		lg.Release()
		pg.Release()
	}
}

// subdivide replaces the full leaf l, child of parent at slot, with a branch
// or, when l cannot be split anymore, with a sub-lattice node. The occupants
// of l are migrated to the new node and l is retired. It does nothing when a
// concurrent subdivision already replaced l.
func (r *Root) subdivide(owner *locks.Owner, parent holder, slot int, l *leaf) {
	r.lattice.hook(HookSubdivideStart)

	unlock := r.lattice.config.Strategy.lock(owner, parent, l)
	defer unlock()

	if l.retired || parent.child(slot) != l || !r.isFullLocked(l) {
		return
	}

	objects := make([]*models.Object, 0, len(l.occupants))
	entries := make([]locks.Entry, 0, len(l.occupants))
	for _, o := range l.occupants {
		objects = append(objects, o)
		entries = append(entries, o.LockEntry())
	}
	sortByGUID(objects)

	snapshot := locks.LockAll(owner, locks.Write, entries)
	defer snapshot.Release()

	r.lattice.hook(HookBeforeDispatch)

	var n node
	kind := subdivisionSplit
	if l.region.IsUnit() {
		n = r.embed(owner, parent, slot, l, objects)
		kind = subdivisionEmbed
	} else {
		n = r.split(parent, slot, l, objects)
	}

	parent.replace(slot, n)
	l.retireLocked()
	r.lattice.retired.Add(1)
	r.lattice.ids.Release(l.id)

	instrumentSubdivision(kind)
	logs.WithTag("depth", r.depth).
		WithTag("region", l.region.String()).
		WithTag("kind", kind).
		WithTag("occupants", len(objects)).
		Debug("leaf subdivided")
}

// split builds the branch replacing l and dispatches the snapshot of its
// occupants to the new leaves, one bucket per octant. A bucket is admitted as
// a whole even when it exceeds the capacity of its leaf.
func (r *Root) split(parent holder, slot int, l *leaf, objects []*models.Object) *branch {
	b := newBranch(r, l.region, parent, slot)

	var buckets [spatial.OctantCount][]*models.Object
	for _, o := range objects {
		f, ok := o.FrameLocked(r.depth)
		if !ok {
			panic(missingFrame(o, r.depth))
		}

		_, octant := b.selectChildLocked(f.Position)
		buckets[octant] = append(buckets[octant], o)
	}

	// The branch is not published yet: its leaves are only reachable from
	// here.
	for octant, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}

		child := b.children[octant].(*leaf)
		for _, o := range bucket {
			f, _ := o.FrameLocked(r.depth)
			child.mustAdmitLocked(o, f.Position)
		}
	}
	return b
}

// embed builds the sub-lattice node replacing the unit leaf l and reinserts
// the snapshot of its occupants into the embedded lattice.
func (r *Root) embed(owner *locks.Owner, parent holder, slot int, l *leaf, objects []*models.Object) *subLattice {
	t, err := spatial.NewEmbeddingTransform(l.region)
	if err != nil {
		panic(errors.New("embedding lattice failed").
			WithType(ErrTypeContainmentViolated).
			WithTag("region", l.region.String()).
			Wrap(err))
	}

	s := &subLattice{
		nodeBase:  newNodeBase(r, "sub_lattice", l.region, parent, slot),
		inner:     newRoot(r.lattice, r.depth+1),
		transform: t,
	}
	s.inner.outer = r
	s.inner.embedding = t

	for _, o := range objects {
		f, ok := o.FrameLocked(r.depth)
		if !ok {
			panic(missingFrame(o, r.depth))
		}
		if !l.region.Contains(f.Position) {
			panic(containmentViolated(l.region, f.Position))
		}

		s.inner.insert(owner, o, r.enter(owner, o, s, f))
	}

	logs.WithTag("depth", s.inner.depth).
		WithTag("region", l.region.String()).
		WithTag("occupants", len(objects)).
		Info("sub-lattice created")
	return s
}

func missingFrame(o *models.Object, depth int) error {
	return errors.New("object has no frame at the depth of its leaf").
		WithType(ErrTypeContainmentViolated).
		WithTag("guid", o.GUID).
		WithTag("depth", depth)
}

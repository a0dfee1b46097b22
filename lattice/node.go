package lattice

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
)

// node is a node of a lattice: a *leaf, a *branch or a *subLattice.
type node interface {
	base() *nodeBase
}

// holder is a node owning child slots: a *branch or a *Root.
type holder interface {
	mutex() *locks.RWMutex
	child(slot int) node

	// replace sets the child at slot. The holder write lock must be held.
	replace(slot int, n node)
}

type nodeBase struct {
	id     uint64
	region spatial.Region
	lock   *locks.RWMutex
	parent holder
	slot   int
}

func (b *nodeBase) base() *nodeBase {
	return b
}

func newNodeBase(r *Root, kind string, region spatial.Region, parent holder, slot int) nodeBase {
	return nodeBase{
		id:     r.lattice.ids.New(),
		region: region,
		lock:   locks.New(kind, r.lattice.config.TrackLockWaits),
		parent: parent,
		slot:   slot,
	}
}

// leaf is a terminal node holding occupants.
type leaf struct {
	nodeBase

	occupants map[uuid.UUID]*models.Object
	ticks     *tickRecord
	retired   bool
}

// tickRecord is attached to a leaf once it admits a tickable occupant.
type tickRecord struct {
	objects map[uuid.UUID]*models.Object
}

func newLeaf(r *Root, region spatial.Region, parent holder, slot int) *leaf {
	return &leaf{
		nodeBase:  newNodeBase(r, "leaf", region, parent, slot),
		occupants: make(map[uuid.UUID]*models.Object),
	}
}

// admitLocked adds o to the occupants. It returns false when the leaf is
// retired. The leaf write lock must be held.
func (l *leaf) admitLocked(o *models.Object) bool {
	if l.retired {
		return false
	}

	l.occupants[o.GUID] = o
	if o.Behavior != nil {
		if l.ticks == nil {
			l.ticks = &tickRecord{objects: make(map[uuid.UUID]*models.Object)}
		}
		l.ticks.objects[o.GUID] = o
	}
	return true
}

// mustAdmitLocked admits o at pos and panics when the leaf refuses it.
func (l *leaf) mustAdmitLocked(o *models.Object, pos spatial.Vector3) {
	if !l.admitLocked(o) {
		panic(containmentViolated(l.region, pos))
	}
}

// evictLocked removes o from the occupants. The leaf write lock must be held.
func (l *leaf) evictLocked(o *models.Object) bool {
	if l.occupants[o.GUID] != o {
		return false
	}

	delete(l.occupants, o.GUID)
	if l.ticks != nil {
		delete(l.ticks.objects, o.GUID)
	}
	return true
}

// retireLocked marks the leaf as replaced. A retired leaf stays empty forever.
// The leaf write lock must be held.
func (l *leaf) retireLocked() {
	l.retired = true
	l.occupants = make(map[uuid.UUID]*models.Object)
	l.ticks = nil
}

// tickablesLocked returns the registered tickable occupants. The leaf read
// lock must be held.
func (l *leaf) tickablesLocked() []*models.Object {
	if l.ticks == nil {
		return nil
	}

	objects := make([]*models.Object, 0, len(l.ticks.objects))
	for _, o := range l.ticks.objects {
		objects = append(objects, o)
	}
	return objects
}

// branch is an inner node with one child per octant. Octants that are empty
// because the region has a size of 1 on their axis stay nil.
type branch struct {
	nodeBase

	children [spatial.OctantCount]node
}

func newBranch(r *Root, region spatial.Region, parent holder, slot int) *branch {
	b := &branch{
		nodeBase: newNodeBase(r, "branch", region, parent, slot),
	}
	for octant, childRegion := range region.Split() {
		b.children[octant] = newLeaf(r, childRegion, b, octant)
	}
	return b
}

func (b *branch) mutex() *locks.RWMutex {
	return b.lock
}

func (b *branch) child(slot int) node {
	return b.children[slot]
}

func (b *branch) replace(slot int, n node) {
	b.children[slot] = n
}

// selectChildLocked returns the child whose region contains pos. The branch
// read lock must be held.
func (b *branch) selectChildLocked(pos spatial.Vector3) (node, int) {
	octant := b.region.Octant(pos)
	child := b.children[octant]
	if child == nil || !child.base().region.Contains(pos) {
		panic(containmentViolated(b.region, pos))
	}
	return child, octant
}

// subLattice is a unit-sized node embedding a whole lattice one depth below.
type subLattice struct {
	nodeBase

	inner     *Root
	transform spatial.Transform
}

func containmentViolated(region spatial.Region, pos spatial.Vector3) error {
	return errors.New("position is not contained by the node it is routed to").
		WithType(ErrTypeContainmentViolated).
		WithTag("region", region.String()).
		WithTag("position", pos.String())
}

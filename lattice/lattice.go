// Package lattice implements a concurrent octree over the int64 coordinate
// space.
//
// Leaves subdivide when they exceed their capacity. A leaf that can no longer
// be split because its region is a single position embeds a whole new
// lattice instead, in which coincident objects are spread apart by a jitter
// derived from their GUID.
//
// Locks are always acquired parent before child, and node before object.
// Object locks taken together are acquired in ascending GUID order.
package lattice

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
)

// Status is the outcome of a lattice operation.
type Status int

const (
	Created Status = iota
	AlreadyPresent
	Rejected
	Removed
	Moved
	NotFound
	Updated
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case AlreadyPresent:
		return "already_present"
	case Rejected:
		return "rejected"
	case Removed:
		return "removed"
	case Moved:
		return "moved"
	case NotFound:
		return "not_found"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Result is the outcome of an insertion.
type Result struct {
	Status Status

	// The handle finalizing a Created insertion.
	Pending *Pending

	// Why the insertion was rejected.
	Reason string
}

// Lattice is the entry point of a lattice hierarchy. It is safe for
// concurrent use.
type Lattice struct {
	config  Config
	root    *Root
	ids     models.NodeIDGenerator
	retired atomic.Int64

	mutex   sync.RWMutex
	objects map[uuid.UUID]*models.Object

	// The number of placements in progress per object. A placed object is
	// out of the tree until its placement ends.
	placing map[*models.Object]int

	tickMutex sync.Mutex
	tick      uint64
}

// New creates a lattice with the given configuration.
func New(config Config) (*Lattice, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Lattice{
		config:  config,
		objects: make(map[uuid.UUID]*models.Object),
		placing: make(map[*models.Object]int),
	}
	l.root = newRoot(l, 0)
	return l, nil
}

func (l *Lattice) Config() Config {
	return l.config
}

// Root returns the top of the outermost lattice.
func (l *Lattice) Root() *Root {
	return l.root
}

// Insert adds o at its outermost position. A created object is locatable
// right away and stays provisional until the returned pending handle is
// committed.
func (l *Lattice) Insert(o *models.Object) Result {
	res := l.insert(o)
	instrumentInsert(res.Status)

	if res.Status == Rejected {
		logs.WithTag("reason", res.Reason).Debug("insertion rejected")
	}
	return res
}

func (l *Lattice) insert(o *models.Object) Result {
	if o == nil {
		return Result{Status: Rejected, Reason: "object is nil"}
	}

	owner := locks.NewOwner()
	f, _ := frameAt(owner, o, 0)

	if !spatial.Universe.Contains(f.Position) {
		return Result{
			Status: Rejected,
			Reason: "position " + f.Position.String() + " is out of the lattice bounds",
		}
	}

	if !l.reserve(o) {
		return Result{Status: AlreadyPresent}
	}
	defer l.endPlacement(o)

	o.SetCommitted(false)
	l.place(owner, o, f.Position)

	if !l.indexed(o) {
		// Removed while being placed.
		l.root.seek(owner, o, locks.Write, evict(o))
		return Result{Status: Rejected, Reason: "object was removed during its insertion"}
	}

	return Result{
		Status:  Created,
		Pending: &Pending{lattice: l, object: o},
	}
}

// place resets the frames of o to pos and inserts it in the outermost
// lattice.
func (l *Lattice) place(owner *locks.Owner, o *models.Object, pos spatial.Vector3) {
	g := o.Mutex().Lock(owner, locks.Write)
	o.MoveLocked(pos)
	f, _ := o.FrameLocked(0)
	g.Release()

	l.root.insert(owner, o, f)
}

func (l *Lattice) reserve(o *models.Object) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.objects[o.GUID]; ok {
		return false
	}
	l.objects[o.GUID] = o
	l.placing[o]++
	return true
}

// beginPlacement records that o is about to leave the tree to be placed
// again. It returns false when o is no longer indexed.
func (l *Lattice) beginPlacement(o *models.Object) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.objects[o.GUID] != o {
		return false
	}
	l.placing[o]++
	return true
}

func (l *Lattice) endPlacement(o *models.Object) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.placing[o]--; l.placing[o] <= 0 {
		delete(l.placing, o)
	}
}

func (l *Lattice) indexed(o *models.Object) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.objects[o.GUID] == o
}

// unindex removes o from the GUID index. placing reports whether a placement
// of o was in progress at that time.
func (l *Lattice) unindex(o *models.Object) (removed, placing bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.objects[o.GUID] != o {
		return false, false
	}
	delete(l.objects, o.GUID)
	return true, l.placing[o] != 0
}

// Remove removes the object with the given GUID.
func (l *Lattice) Remove(guid uuid.UUID) Status {
	s := l.remove(guid)
	instrumentRemove(s)
	return s
}

func (l *Lattice) remove(guid uuid.UUID) Status {
	o, ok := l.get(guid)
	if !ok {
		return NotFound
	}
	return l.removeObject(o)
}

func (l *Lattice) removeObject(o *models.Object) Status {
	removed, placing := l.unindex(o)
	if !removed {
		return NotFound
	}

	// The object is not in the tree while a move or an insertion of it is in
	// progress. They evict it themselves once they see it unindexed. No
	// placement can start once it is unindexed.
	if !l.root.seek(locks.NewOwner(), o, locks.Write, evict(o)) && !placing {
		panic(missingObject(o))
	}
	return Removed
}

func missingObject(o *models.Object) error {
	return errors.New("indexed object is missing from the lattice").
		WithType(ErrTypeContainmentViolated).
		WithTag("guid", o.GUID).
		WithTag("depth", o.Depth())
}

func evict(o *models.Object) func(r *Root, lf *leaf) bool {
	return func(r *Root, lf *leaf) bool {
		return lf.evictLocked(o)
	}
}

// Move moves the object with the given GUID to the outermost position to.
func (l *Lattice) Move(guid uuid.UUID, to spatial.Vector3) Status {
	o, ok := l.get(guid)
	if !ok {
		return NotFound
	}
	return l.moveObject(o, to)
}

func (l *Lattice) moveObject(o *models.Object, to spatial.Vector3) Status {
	if !spatial.Universe.Contains(to) {
		return Rejected
	}

	if !l.beginPlacement(o) {
		return NotFound
	}
	defer l.endPlacement(o)

	owner := locks.NewOwner()
	if !l.root.seek(owner, o, locks.Write, evict(o)) {
		return NotFound
	}

	l.place(owner, o, to)

	if !l.indexed(o) {
		l.root.seek(owner, o, locks.Write, evict(o))
		return NotFound
	}
	return Moved
}

// SetVelocity sets the outermost velocity of the object with the given GUID
// and rescales the velocities of its frames in embedded lattices.
func (l *Lattice) SetVelocity(guid uuid.UUID, v spatial.Vector3) Status {
	o, ok := l.get(guid)
	if !ok {
		return NotFound
	}

	// A placement in progress derives the embedded frames from the outermost
	// one.
	o.SetVelocity(v)

	owner := locks.NewOwner()
	l.root.seek(owner, o, locks.Write, func(r *Root, lf *leaf) bool {
		g := o.Mutex().Lock(owner, locks.Write)
		defer g.Release()

		for _, inner := range r.embedded() {
			outer, ok := o.FrameLocked(inner.depth - 1)
			if !ok {
				panic(missingFrame(o, inner.depth-1))
			}
			if !o.SetVelocityLocked(inner.depth, inner.embedding.VelocityOuterToInner(outer.Velocity)) {
				panic(missingFrame(o, inner.depth))
			}
		}
		return true
	})

	if !l.indexed(o) {
		return NotFound
	}
	return Updated
}

func (l *Lattice) get(guid uuid.UUID) (*models.Object, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	o, ok := l.objects[guid]
	return o, ok
}

// Lookup returns the visible object with the given GUID.
func (l *Lattice) Lookup(guid uuid.UUID) (*models.Object, bool) {
	o, ok := l.get(guid)
	if !ok || !l.visible(o) {
		return nil, false
	}
	return o, true
}

// Location is where an object is stored.
type Location struct {
	// The nesting depth of the lattice holding the object.
	Depth int `json:"depth"`

	// The region of the leaf holding the object, in the coordinates of
	// that lattice.
	Region spatial.Region `json:"region"`

	// The object position in the coordinates of that lattice.
	Position spatial.Vector3 `json:"position"`
}

// Locate descends the lattice hierarchy to the leaf holding the object with
// the given GUID.
func (l *Lattice) Locate(guid uuid.UUID) (Location, bool) {
	o, ok := l.get(guid)
	if !ok {
		return Location{}, false
	}

	var loc Location
	owner := locks.NewOwner()
	found := l.root.seek(owner, o, locks.Read, func(r *Root, lf *leaf) bool {
		f, ok := frameAt(owner, o, r.depth)
		loc = Location{
			Depth:    r.depth,
			Region:   lf.region,
			Position: f.Position,
		}
		return ok
	})
	return loc, found
}

// Len returns the number of objects in the lattice, visible or not.
func (l *Lattice) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.objects)
}

func (l *Lattice) visible(o *models.Object) bool {
	return l.config.Visibility == VisibleImmediately || o.IsCommitted()
}

func (l *Lattice) hook(p HookPoint) {
	if l.config.Hooks != nil {
		l.config.Hooks.At(p)
	}
}

// Pending finalizes a two-phase insertion.
type Pending struct {
	lattice *Lattice
	object  *models.Object
	state   atomic.Int32
}

const (
	pendingOpen int32 = iota
	pendingCommitted
	pendingRolledBack
)

func (p *Pending) Object() *models.Object {
	return p.object
}

// Commit makes the insertion final. It returns false when the insertion was
// already finalized or when the object was removed in the meantime.
func (p *Pending) Commit() bool {
	if !p.state.CompareAndSwap(pendingOpen, pendingCommitted) {
		return false
	}
	if !p.lattice.indexed(p.object) {
		return false
	}

	p.object.SetCommitted(true)
	return true
}

// Rollback removes the object. It returns false when the insertion was
// already finalized.
func (p *Pending) Rollback() bool {
	if !p.state.CompareAndSwap(pendingOpen, pendingRolledBack) {
		return false
	}

	instrumentRemove(p.lattice.removeObject(p.object))
	return true
}

func sortByGUID(objects []*models.Object) {
	sort.Slice(objects, func(i, j int) bool {
		return lessGUID(objects[i].GUID, objects[j].GUID)
	})
}

func lessGUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

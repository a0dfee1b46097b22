package lattice

import (
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
)

// QueryPoint returns the visible object at the outermost position p. When
// several objects share p, the one with the lowest GUID is returned.
func (l *Lattice) QueryPoint(p spatial.Vector3) (*models.Object, bool) {
	var found *models.Object

	owner := locks.NewOwner()
	l.root.walk(owner, visitor{
		keep: func(region spatial.Region) bool {
			return region.Contains(p)
		},
		leaf: func(r *Root, lf *leaf) {
			for _, o := range lf.occupants {
				if !l.visible(o) {
					continue
				}
				if f, ok := frameAt(owner, o, 0); !ok || !f.Position.Equal(p) {
					continue
				}
				if found == nil || lessGUID(o.GUID, found.GUID) {
					found = o
				}
			}
		},
	})
	return found, found != nil
}

// QuerySphere returns the visible objects whose outermost position is within
// the given sphere, sorted by GUID.
func (l *Lattice) QuerySphere(s spatial.Sphere) []*models.Object {
	var objects []*models.Object

	owner := locks.NewOwner()
	l.root.walk(owner, visitor{
		keep: s.Intersects,
		leaf: func(r *Root, lf *leaf) {
			for _, o := range lf.occupants {
				if !l.visible(o) {
					continue
				}
				if f, ok := frameAt(owner, o, 0); ok && s.Contains(f.Position) {
					objects = append(objects, o)
				}
			}
		},
	})

	sortByGUID(objects)
	return objects
}

// Walk calls fn for every visible object. fn is called with lattice locks
// held and must not call the lattice.
func (l *Lattice) Walk(fn func(o *models.Object)) {
	l.root.walk(locks.NewOwner(), visitor{
		leaf: func(r *Root, lf *leaf) {
			for _, o := range lf.occupants {
				if l.visible(o) {
					fn(o)
				}
			}
		},
	})
}

// DebugInfo describes the shape of a lattice hierarchy.
type DebugInfo struct {
	Capacity    int    `json:"capacity"`
	MaxDepth    int    `json:"max_depth"`
	Visibility  string `json:"visibility"`
	Objects     int    `json:"objects"`
	Occupants   int    `json:"occupants"`
	Leaves      int    `json:"leaves"`
	Branches    int    `json:"branches"`
	SubLattices int    `json:"sub_lattices"`
	Depth       int    `json:"depth"`
	Retired     int64  `json:"retired"`
	NodeIDs     int    `json:"node_ids"`

	// The number of leaves per occupant count.
	Occupancy map[int]int `json:"occupancy"`
}

func (l *Lattice) DebugInfo() DebugInfo {
	info := DebugInfo{
		Capacity:   l.config.Capacity,
		MaxDepth:   l.config.MaxDepth,
		Visibility: l.config.Visibility.String(),
		Objects:    l.Len(),
		Retired:    l.retired.Load(),
		NodeIDs:    l.ids.InUse(),
		Occupancy:  make(map[int]int),
	}

	l.root.walk(locks.NewOwner(), visitor{
		leaf: func(r *Root, lf *leaf) {
			info.Leaves++
			info.Occupants += len(lf.occupants)
			info.Occupancy[len(lf.occupants)]++
			if r.depth > info.Depth {
				info.Depth = r.depth
			}
		},
		node: func(r *Root, n node) {
			switch n.(type) {
			case *branch:
				info.Branches++
			case *subLattice:
				info.SubLattices++
			}
		},
	})
	return info
}

package models

import (
	"sort"
	"sync"
)

// NodeIDGenerator hands out node ids. Ids released by retired nodes are
// handed out again, lowest first.
type NodeIDGenerator struct {
	mutex    sync.Mutex
	next     uint64
	released []uint64
}

func (g *NodeIDGenerator) New() uint64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = g.released[1:]
		return id
	}

	g.next++
	return g.next
}

// Release makes id available to New. Releasing an id twice is a no-op.
func (g *NodeIDGenerator) Release(id uint64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	i := sort.Search(len(g.released), func(i int) bool {
		return g.released[i] >= id
	})
	if i < len(g.released) && g.released[i] == id {
		return
	}

	g.released = append(g.released, 0)
	copy(g.released[i+1:], g.released[i:])
	g.released[i] = id
}

// InUse returns the number of ids handed out and not released.
func (g *NodeIDGenerator) InUse() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return int(g.next) - len(g.released)
}

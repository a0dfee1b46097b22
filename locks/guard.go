package locks

import (
	"sort"
	"sync"
)

// Guard is a scoped hold on a lock. Release is safe to call several times
// and is meant to be deferred right after the acquisition.
type Guard struct {
	mutex     *RWMutex
	owner     *Owner
	mode      Mode
	noop      bool
	downgrade bool
	released  bool
}

// noopGuard is returned for re-entrant acquisitions: releasing it leaves the
// outer hold untouched.
func noopGuard(m *RWMutex, owner *Owner, mode Mode) *Guard {
	return &Guard{mutex: m, owner: owner, mode: mode, noop: true}
}

func (g *Guard) Mode() Mode {
	return g.mode
}

// Upgrade escalates an upgradeable guard to Write. Releasing the guard then
// releases the lock entirely.
func (g *Guard) Upgrade() {
	if g.mode != Upgradeable || g.released {
		return
	}

	m := g.mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch m.modeLocked(g.owner) {
	case Write:
		// An outer hold is already exclusive.

	case Upgradeable:
		m.upgradeLocked(g.owner)
		if g.noop {
			// Escalate the outer hold and give it back on release.
			g.noop = false
			g.downgrade = true
		}
	}
	g.mode = Write
}

func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true

	if g.noop {
		return
	}
	g.mutex.release(g.owner, g.mode, g.downgrade)
}

// Entry is a lock to acquire as part of a Handle. Key defines the
// acquisition order.
type Entry struct {
	Key   string
	Mutex *RWMutex
}

// Handle holds several locks acquired in ascending key order.
type Handle struct {
	once   sync.Once
	guards []*Guard
}

// LockAll acquires every entry in ascending key order, whatever the order
// they are given in. The returned handle releases them in reverse order.
func LockAll(owner *Owner, mode Mode, entries []Entry) *Handle {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	h := &Handle{guards: make([]*Guard, 0, len(sorted))}
	for _, e := range sorted {
		h.guards = append(h.guards, e.Mutex.Lock(owner, mode))
	}
	return h
}

func (h *Handle) Release() {
	h.once.Do(func() {
		for i := len(h.guards) - 1; i >= 0; i-- {
			h.guards[i].Release()
		}
	})
}

// Package locks provides the reader/writer lock guarding lattice nodes and
// objects.
//
// Lock ownership is tracked explicitly with an Owner instead of relying on
// the goroutine that acquired it. Acquiring a lock already held by the same
// owner in a compatible mode is a no-op, which lets an operation re-enter a
// path it already secured.
package locks

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeMisuse is the type of the errors panicked with when a lock is
	// used in a way that would deadlock its own owner.
	ErrTypeMisuse = "lock_misuse"
)

// Mode is a lock acquisition mode.
type Mode int

const (
	// Read is a shared mode.
	Read Mode = iota + 1

	// Upgradeable is a shared mode that excludes other upgradeable holders
	// and writers, and that can be escalated to Write without releasing.
	Upgradeable

	// Write is an exclusive mode.
	Write
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Upgradeable:
		return "upgradeable"
	case Write:
		return "write"
	default:
		return "none"
	}
}

var ownerIDs atomic.Uint64

// Owner identifies the holder of locks. An owner is used by one goroutine at
// a time.
type Owner struct {
	id uint64
}

func NewOwner() *Owner {
	return &Owner{id: ownerIDs.Add(1)}
}

func (o *Owner) ID() uint64 {
	return o.id
}

// RWMutex is a reader/writer lock that records which owners hold it.
type RWMutex struct {
	kind  string
	track bool

	mutex          sync.Mutex
	cond           sync.Cond
	writer         uint64
	upgrader       uint64
	readers        map[uint64]struct{}
	waitingWriters int
}

// New returns a lock. kind labels lock wait metrics, which are only recorded
// when track is true.
func New(kind string, track bool) *RWMutex {
	m := &RWMutex{
		kind:    kind,
		track:   track,
		readers: make(map[uint64]struct{}),
	}
	m.cond.L = &m.mutex
	return m
}

// Lock acquires the lock for owner in the given mode and returns the guard
// that releases it. It blocks until the lock is available.
func (m *RWMutex) Lock(owner *Owner, mode Mode) *Guard {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch held := m.modeLocked(owner); {
	case held == Write:
		return noopGuard(m, owner, mode)

	case held == Upgradeable && mode == Write:
		m.upgradeLocked(owner)
		return &Guard{mutex: m, owner: owner, mode: Write, downgrade: true}

	case held == Upgradeable && mode == Upgradeable,
		held != 0 && mode == Read:
		return noopGuard(m, owner, mode)

	case held != 0:
		panic(errors.New("lock is already held in a mode that cannot be escalated").
			WithType(ErrTypeMisuse).
			WithTag("kind", m.kind).
			WithTag("held", held.String()).
			WithTag("requested", mode.String()))
	}

	start := time.Now()
	waited := false

	switch mode {
	case Read:
		for m.writer != 0 || m.waitingWriters > 0 {
			waited = true
			m.cond.Wait()
		}
		m.readers[owner.id] = struct{}{}

	case Upgradeable:
		for m.writer != 0 || m.upgrader != 0 || m.waitingWriters > 0 {
			waited = true
			m.cond.Wait()
		}
		m.upgrader = owner.id

	case Write:
		m.waitingWriters++
		for m.writer != 0 || m.upgrader != 0 || len(m.readers) != 0 {
			waited = true
			m.cond.Wait()
		}
		m.waitingWriters--
		m.writer = owner.id
	}

	if waited && m.track {
		instrumentLockWait(m.kind, start)
	}
	return &Guard{mutex: m, owner: owner, mode: mode}
}

// Mode returns the mode owner holds the lock in, or 0.
func (m *RWMutex) Mode(owner *Owner) Mode {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.modeLocked(owner)
}

func (m *RWMutex) modeLocked(owner *Owner) Mode {
	switch {
	case m.writer == owner.id:
		return Write
	case m.upgrader == owner.id:
		return Upgradeable
	}
	if _, ok := m.readers[owner.id]; ok {
		return Read
	}
	return 0
}

// upgradeLocked escalates the upgradeable hold of owner to Write. Readers
// already in keep the lock until they release it.
func (m *RWMutex) upgradeLocked(owner *Owner) {
	start := time.Now()
	waited := false

	m.waitingWriters++
	for len(m.readers) != 0 {
		waited = true
		m.cond.Wait()
	}
	m.waitingWriters--
	m.writer = owner.id

	if waited && m.track {
		instrumentLockWait(m.kind, start)
	}
}

func (m *RWMutex) release(owner *Owner, mode Mode, downgrade bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch mode {
	case Read:
		delete(m.readers, owner.id)

	case Upgradeable:
		m.upgrader = 0

	case Write:
		m.writer = 0
		if !downgrade {
			m.upgrader = 0
		}
	}
	m.cond.Broadcast()
}

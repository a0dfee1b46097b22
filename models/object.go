package models

import (
	"sync/atomic"

	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
)

// Frame is the state of an object in the coordinate system of one lattice.
type Frame struct {
	Position spatial.Vector3
	Velocity spatial.Vector3
}

// Object is a positioned entity stored in a lattice.
//
// An object holds one frame per lattice nesting depth: index 0 is the
// outermost lattice, and each sub-lattice the object migrated into adds the
// frame expressed in that sub-lattice's coordinates.
type Object struct {
	GUID     uuid.UUID
	Behavior Behavior

	mutex     *locks.RWMutex
	frames    []Frame
	committed atomic.Bool
}

type ObjectOption func(*objectConfig)

type objectConfig struct {
	guid     uuid.UUID
	velocity spatial.Vector3
	behavior Behavior
	track    bool
}

// WithGUID sets the object GUID instead of generating a random one.
func WithGUID(guid uuid.UUID) ObjectOption {
	return func(c *objectConfig) {
		c.guid = guid
	}
}

func WithVelocity(v spatial.Vector3) ObjectOption {
	return func(c *objectConfig) {
		c.velocity = v
	}
}

// WithBehavior makes the object tickable.
func WithBehavior(b Behavior) ObjectOption {
	return func(c *objectConfig) {
		c.behavior = b
	}
}

// WithLockTracking records the time spent waiting for the object lock.
func WithLockTracking() ObjectOption {
	return func(c *objectConfig) {
		c.track = true
	}
}

// NewObject returns an object located at pos in the outermost lattice.
func NewObject(pos spatial.Vector3, options ...ObjectOption) *Object {
	c := objectConfig{guid: uuid.New()}
	for _, o := range options {
		o(&c)
	}

	return &Object{
		GUID:     c.guid,
		Behavior: c.behavior,
		mutex:    locks.New("object", c.track),
		frames: []Frame{{
			Position: pos,
			Velocity: c.velocity,
		}},
	}
}

// Mutex returns the lock guarding the object frames.
func (o *Object) Mutex() *locks.RWMutex {
	return o.mutex
}

// LockEntry returns the object lock keyed for ordered acquisition.
func (o *Object) LockEntry() locks.Entry {
	return locks.Entry{
		Key:   o.GUID.String(),
		Mutex: o.mutex,
	}
}

// Position returns the outermost position.
func (o *Object) Position() spatial.Vector3 {
	f, _ := o.Frame(0)
	return f.Position
}

// Velocity returns the outermost velocity.
func (o *Object) Velocity() spatial.Vector3 {
	f, _ := o.Frame(0)
	return f.Velocity
}

// SetVelocity sets the outermost velocity. Frames in embedded lattices keep
// the velocity they were placed with.
func (o *Object) SetVelocity(v spatial.Vector3) {
	owner := locks.NewOwner()
	g := o.mutex.Lock(owner, locks.Write)
	defer g.Release()

	o.frames[0].Velocity = v
}

// SetVelocityLocked sets the velocity of the frame at depth. It returns false
// when there is no such frame. The object write lock must be held.
func (o *Object) SetVelocityLocked(depth int, v spatial.Vector3) bool {
	if depth < 0 || depth >= len(o.frames) {
		return false
	}
	o.frames[depth].Velocity = v
	return true
}

// Frame returns the frame at the given depth.
func (o *Object) Frame(depth int) (Frame, bool) {
	owner := locks.NewOwner()
	g := o.mutex.Lock(owner, locks.Read)
	defer g.Release()

	return o.FrameLocked(depth)
}

// Depth returns the depth of the innermost frame.
func (o *Object) Depth() int {
	owner := locks.NewOwner()
	g := o.mutex.Lock(owner, locks.Read)
	defer g.Release()

	return len(o.frames) - 1
}

// FrameLocked is Frame for callers holding the object lock.
func (o *Object) FrameLocked(depth int) (Frame, bool) {
	if depth < 0 || depth >= len(o.frames) {
		return Frame{}, false
	}
	return o.frames[depth], true
}

// FramesLocked returns a copy of every frame. The object lock must be held.
func (o *Object) FramesLocked() []Frame {
	frames := make([]Frame, len(o.frames))
	copy(frames, o.frames)
	return frames
}

// PlaceLocked records f as the frame at depth and drops any deeper frame. The
// object write lock must be held.
func (o *Object) PlaceLocked(depth int, f Frame) {
	if depth < len(o.frames) {
		o.frames = o.frames[:depth+1]
		o.frames[depth] = f
	} else {
		o.frames = append(o.frames, f)
	}
	instrumentPlacement(depth)
}

// MoveLocked resets the object to pos in the outermost lattice, keeping its
// outermost velocity. The object write lock must be held.
func (o *Object) MoveLocked(pos spatial.Vector3) {
	o.frames = o.frames[:1]
	o.frames[0].Position = pos
}

// IsCommitted reports whether the insertion of the object was committed.
func (o *Object) IsCommitted() bool {
	return o.committed.Load()
}

func (o *Object) SetCommitted(v bool) {
	o.committed.Store(v)
}

package models

import (
	"sync/atomic"

	"github.com/aukilabs/lattice/spatial"
)

// Behavior is the tick logic of a tickable object. Tick is called without any
// lattice lock held and returns what the lattice should do with the object
// once the whole tick pass is over.
type Behavior interface {
	Tick(o *Object, tick uint64) Action
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionMove
	ActionRemove
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionRemove:
		return "remove"
	default:
		return "none"
	}
}

type Action struct {
	Kind ActionKind

	// The outermost position to move to. Only set for ActionMove.
	To spatial.Vector3
}

func Stay() Action {
	return Action{}
}

func MoveTo(p spatial.Vector3) Action {
	return Action{Kind: ActionMove, To: p}
}

func Remove() Action {
	return Action{Kind: ActionRemove}
}

// Drift moves an object by its outermost velocity on every tick.
type Drift struct{}

func (Drift) Tick(o *Object, tick uint64) Action {
	v := o.Velocity()
	if v.Equal(spatial.Vector3{}) {
		return Stay()
	}
	return MoveTo(spatial.Add(o.Position(), v))
}

// Expire removes an object once it has been ticked Ticks times.
type Expire struct {
	Ticks uint64

	count atomic.Uint64
}

func (e *Expire) Tick(o *Object, tick uint64) Action {
	if e.count.Add(1) >= e.Ticks {
		return Remove()
	}
	return Stay()
}

// Behaviors chains behaviors: the first one returning an action other than
// ActionNone wins.
type Behaviors []Behavior

func (b Behaviors) Tick(o *Object, tick uint64) Action {
	for _, behavior := range b {
		if a := behavior.Tick(o, tick); a.Kind != ActionNone {
			return a
		}
	}
	return Stay()
}

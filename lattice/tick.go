package lattice

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/lattice/locks"
	"github.com/aukilabs/lattice/models"
)

// TickSummary reports what a tick pass did.
type TickSummary struct {
	Tick    uint64 `json:"tick"`
	Ticked  int    `json:"ticked"`
	Moved   int    `json:"moved"`
	Removed int    `json:"removed"`
}

type tickAction struct {
	object *models.Object
	action models.Action
}

// Tick runs one tick pass. The registered tickable objects of every leaf are
// snapshotted under the leaf read lock and ticked once all locks are
// released. The actions they return are applied after the whole pass.
// Concurrent calls are serialized.
func (l *Lattice) Tick() TickSummary {
	l.tickMutex.Lock()
	defer l.tickMutex.Unlock()

	start := time.Now()
	defer instrumentTick(start)

	l.tick++
	l.hook(HookTickStart)

	var due []*models.Object
	l.root.walk(locks.NewOwner(), visitor{
		leaf: func(r *Root, lf *leaf) {
			due = append(due, lf.tickablesLocked()...)
		},
	})
	sortByGUID(due)

	summary := TickSummary{Tick: l.tick}
	actions := make([]tickAction, 0, len(due))
	for _, o := range due {
		if !l.visible(o) {
			continue
		}

		summary.Ticked++
		a := o.Behavior.Tick(o, l.tick)
		instrumentTickAction(a.Kind.String())
		if a.Kind != models.ActionNone {
			actions = append(actions, tickAction{object: o, action: a})
		}
	}

	for _, a := range actions {
		switch a.action.Kind {
		case models.ActionMove:
			if l.moveObject(a.object, a.action.To) == Moved {
				summary.Moved++
			}

		case models.ActionRemove:
			if s := l.removeObject(a.object); s == Removed {
				instrumentRemove(s)
				summary.Removed++
			}
		}
	}

	logs.WithTag("tick", summary.Tick).
		WithTag("ticked", summary.Ticked).
		WithTag("moved", summary.Moved).
		WithTag("removed", summary.Removed).
		WithTag("duration", time.Since(start)).
		Debug("tick pass completed")
	return summary
}

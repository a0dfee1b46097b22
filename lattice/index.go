package lattice

import (
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
)

// Index is the interface of a spatial object index.
type Index interface {
	Insert(o *models.Object) Result
	Remove(guid uuid.UUID) Status
	Move(guid uuid.UUID, to spatial.Vector3) Status
	SetVelocity(guid uuid.UUID, v spatial.Vector3) Status
	Lookup(guid uuid.UUID) (*models.Object, bool)
	Locate(guid uuid.UUID) (Location, bool)
	QueryPoint(p spatial.Vector3) (*models.Object, bool)
	QuerySphere(s spatial.Sphere) []*models.Object
	Walk(fn func(o *models.Object))
	Tick() TickSummary
	Len() int
	DebugInfo() DebugInfo
}

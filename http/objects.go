package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/lattice/lattice"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// Object is the JSON representation of a lattice object.
type Object struct {
	GUID      uuid.UUID         `json:"guid"`
	Position  spatial.Vector3   `json:"position"`
	Velocity  spatial.Vector3   `json:"velocity"`
	Committed bool              `json:"committed"`
	Location  *lattice.Location `json:"location,omitempty"`
}

// InsertRequest is the body of an object insertion.
type InsertRequest struct {
	GUID     uuid.UUID       `json:"guid"`
	Position spatial.Vector3 `json:"position"`
	Velocity spatial.Vector3 `json:"velocity"`

	// Moves the object by its velocity on every tick.
	Drift bool `json:"drift"`

	// Removes the object after the given number of ticks when set.
	TTL uint64 `json:"ttl"`
}

type MoveRequest struct {
	Position spatial.Vector3 `json:"position"`
}

type VelocityRequest struct {
	Velocity spatial.Vector3 `json:"velocity"`
}

// ObjectHandler serves the object API of an index.
type ObjectHandler struct {
	Index lattice.Index
}

// Register adds the object API routes to mux.
func (h ObjectHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /objects", h.HandleInsert)
	mux.HandleFunc("GET /objects/{guid}", h.HandleGet)
	mux.HandleFunc("DELETE /objects/{guid}", h.HandleRemove)
	mux.HandleFunc("PUT /objects/{guid}/position", h.HandleMove)
	mux.HandleFunc("PUT /objects/{guid}/velocity", h.HandleSetVelocity)
	mux.HandleFunc("GET /query/point", h.HandleQueryPoint)
	mux.HandleFunc("GET /query/sphere", h.HandleQuerySphere)
}

func (h ObjectHandler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, errors.New("invalid insert request").Wrap(err))
		return
	}

	options := []models.ObjectOption{
		models.WithVelocity(req.Velocity),
	}
	if req.GUID != uuid.Nil {
		options = append(options, models.WithGUID(req.GUID))
	}

	var behaviors models.Behaviors
	if req.TTL != 0 {
		behaviors = append(behaviors, &models.Expire{Ticks: req.TTL})
	}
	if req.Drift {
		behaviors = append(behaviors, models.Drift{})
	}
	if len(behaviors) != 0 {
		options = append(options, models.WithBehavior(behaviors))
	}

	o := models.NewObject(req.Position, options...)
	res := h.Index.Insert(o)

	switch res.Status {
	case lattice.Created:
		res.Pending.Commit()
		WriteJSON(w, http.StatusCreated, h.object(o))

	case lattice.AlreadyPresent:
		Conflict(w, errors.New("object already present").WithTag("guid", o.GUID))

	default:
		BadRequest(w, errors.New("object rejected").WithTag("reason", res.Reason))
	}
}

func (h ObjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(r.PathValue("guid"))
	if err != nil {
		BadRequest(w, errors.New("invalid guid").Wrap(err))
		return
	}

	o, ok := h.Index.Lookup(guid)
	if !ok {
		NotFound(w, errors.New("object not found").WithTag("guid", guid))
		return
	}
	WriteJSON(w, http.StatusOK, h.object(o))
}

func (h ObjectHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(r.PathValue("guid"))
	if err != nil {
		BadRequest(w, errors.New("invalid guid").Wrap(err))
		return
	}

	if h.Index.Remove(guid) != lattice.Removed {
		NotFound(w, errors.New("object not found").WithTag("guid", guid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h ObjectHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(r.PathValue("guid"))
	if err != nil {
		BadRequest(w, errors.New("invalid guid").Wrap(err))
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, errors.New("invalid move request").Wrap(err))
		return
	}

	switch h.Index.Move(guid, req.Position) {
	case lattice.Moved:
		o, _ := h.Index.Lookup(guid)
		if o == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		WriteJSON(w, http.StatusOK, h.object(o))

	case lattice.Rejected:
		BadRequest(w, errors.New("position out of the lattice bounds").
			WithTag("position", req.Position.String()))

	default:
		NotFound(w, errors.New("object not found").WithTag("guid", guid))
	}
}

func (h ObjectHandler) HandleSetVelocity(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(r.PathValue("guid"))
	if err != nil {
		BadRequest(w, errors.New("invalid guid").Wrap(err))
		return
	}

	var req VelocityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, errors.New("invalid velocity request").Wrap(err))
		return
	}

	if h.Index.SetVelocity(guid, req.Velocity) != lattice.Updated {
		NotFound(w, errors.New("object not found").WithTag("guid", guid))
		return
	}

	o, ok := h.Index.Lookup(guid)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, h.object(o))
}

func (h ObjectHandler) HandleQueryPoint(w http.ResponseWriter, r *http.Request) {
	p, err := parseVector(r)
	if err != nil {
		BadRequest(w, err)
		return
	}

	o, ok := h.Index.QueryPoint(p)
	if !ok {
		NotFound(w, errors.New("no object at position").WithTag("position", p.String()))
		return
	}
	WriteJSON(w, http.StatusOK, h.object(o))
}

func (h ObjectHandler) HandleQuerySphere(w http.ResponseWriter, r *http.Request) {
	center, err := parseVector(r)
	if err != nil {
		BadRequest(w, err)
		return
	}

	radius, err := strconv.ParseUint(r.URL.Query().Get("radius"), 10, 64)
	if err != nil {
		BadRequest(w, errors.New("invalid radius").Wrap(err))
		return
	}

	found := h.Index.QuerySphere(spatial.Sphere{
		Center: center,
		Radius: radius,
	})

	objects := make([]Object, 0, len(found))
	for _, o := range found {
		objects = append(objects, h.object(o))
	}
	WriteJSON(w, http.StatusOK, objects)
}

func (h ObjectHandler) object(o *models.Object) Object {
	obj := Object{
		GUID:      o.GUID,
		Position:  o.Position(),
		Velocity:  o.Velocity(),
		Committed: o.IsCommitted(),
	}

	if loc, ok := h.Index.Locate(o.GUID); ok {
		obj.Location = &loc
	}
	return obj
}

func parseVector(r *http.Request) (spatial.Vector3, error) {
	var v spatial.Vector3
	q := r.URL.Query()

	for i, name := range []string{"x", "y", "z"} {
		value, err := strconv.ParseInt(q.Get(name), 10, 64)
		if err != nil {
			return spatial.Vector3{}, errors.New("invalid coordinate").
				WithTag("axis", name).
				Wrap(err)
		}
		v.SetAxis(i, value)
	}
	return v, nil
}

// HandleDebug serves the debug info of an index.
func HandleDebug(idx lattice.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, idx.DebugInfo())
	}
}

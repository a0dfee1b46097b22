package smoketest

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	latticehttp "github.com/aukilabs/lattice/http"
	"github.com/aukilabs/lattice/lattice"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	ErrTypeInconsistent = "smoketest_inconsistent"
)

// Results reports a scenario run.
type Results struct {
	Scenario         string            `json:"scenario"`
	Status           string            `json:"status"`
	Error            string            `json:"error,omitempty"`
	Inserted         int64             `json:"inserted"`
	Rejected         int64             `json:"rejected"`
	Removed          int64             `json:"removed"`
	Queries          int64             `json:"queries"`
	Hits             int64             `json:"hits"`
	Ticks            int               `json:"ticks"`
	Moved            int               `json:"moved"`
	Objects          int               `json:"objects"`
	DurationMilliSec float64           `json:"duration_ms"`
	Lattice          lattice.DebugInfo `json:"lattice"`
}

type counters struct {
	inserted atomic.Int64
	rejected atomic.Int64
	removed  atomic.Int64
	queries  atomic.Int64
	hits     atomic.Int64
}

// Run runs the scenario against idx and checks that the index holds exactly
// the objects that were inserted and not removed.
func Run(ctx context.Context, idx lattice.Index, s Scenario) (Results, error) {
	res := Results{
		Scenario: s.Name,
		Status:   StatusFailed,
	}

	err := run(ctx, idx, s, &res)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Status = StatusSuccess
	}

	instrumentRun(res.Status)
	return res, err
}

func run(ctx context.Context, idx lattice.Index, s Scenario, res *Results) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if s.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		res.DurationMilliSec = float64(time.Since(start).Microseconds()) / 1000
		res.Lattice = idx.DebugInfo()
	}()

	var c counters
	var keptMutex sync.Mutex
	var kept []*models.Object

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.Workers; w++ {
		w := w
		g.Go(func() error {
			objects, err := runWorker(gctx, idx, s, w, &c)
			if err != nil {
				return err
			}

			keptMutex.Lock()
			defer keptMutex.Unlock()

			kept = append(kept, objects...)
			return nil
		})
	}

	err := g.Wait()
	res.Inserted = c.inserted.Load()
	res.Rejected = c.rejected.Load()
	res.Removed = c.removed.Load()
	res.Queries = c.queries.Load()
	res.Hits = c.hits.Load()
	if err != nil {
		return err
	}

	for i := 0; i < s.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary := idx.Tick()
		res.Ticks++
		res.Moved += summary.Moved
	}

	res.Objects = idx.Len()
	if res.Objects != len(kept) {
		return errors.New("index does not hold the expected number of objects").
			WithType(ErrTypeInconsistent).
			WithTag("expected", len(kept)).
			WithTag("objects", res.Objects)
	}

	for _, o := range kept {
		if _, ok := idx.Locate(o.GUID); !ok {
			return errors.New("kept object cannot be located").
				WithType(ErrTypeInconsistent).
				WithTag("guid", o.GUID)
		}
	}

	walked := 0
	idx.Walk(func(o *models.Object) {
		walked++
	})
	if walked != len(kept) {
		return errors.New("walk does not reach every object").
			WithType(ErrTypeInconsistent).
			WithTag("expected", len(kept)).
			WithTag("walked", walked)
	}
	return nil
}

// runWorker inserts, queries and removes the objects of worker w. It returns
// the objects it did not remove.
func runWorker(ctx context.Context, idx lattice.Index, s Scenario, w int, c *counters) ([]*models.Object, error) {
	rnd := rand.New(rand.NewSource(s.Seed + int64(w)))

	var objects []*models.Object
	insert := func(pos spatial.Vector3) {
		var options []models.ObjectOption
		if s.Velocity > 0 {
			options = append(options,
				models.WithVelocity(spatial.NewVector3(
					randomIn(rnd, s.Velocity),
					randomIn(rnd, s.Velocity),
					randomIn(rnd, s.Velocity),
				)),
				models.WithBehavior(models.Drift{}),
			)
		}

		o := models.NewObject(pos, options...)
		res := idx.Insert(o)
		if res.Status != lattice.Created {
			c.rejected.Add(1)
			return
		}

		res.Pending.Commit()
		objects = append(objects, o)
		c.inserted.Add(1)
	}

	for i := 0; i < s.Objects; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		insert(spatial.NewVector3(
			randomIn(rnd, s.Spread),
			randomIn(rnd, s.Spread),
			randomIn(rnd, s.Spread),
		))
	}

	for _, h := range s.Hotspots {
		for i := w; i < h.Count; i += s.Workers {
			insert(spatial.NewVector3(h.X, h.Y, h.Z))
		}
	}

	for i := 0; i < s.Queries && len(objects) != 0; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := objects[rnd.Intn(len(objects))]
		if _, ok := idx.QueryPoint(target.Position()); !ok {
			return nil, errors.New("inserted object not found by point query").
				WithType(ErrTypeInconsistent).
				WithTag("guid", target.GUID).
				WithTag("position", target.Position().String())
		}
		c.hits.Add(1)

		idx.QuerySphere(spatial.Sphere{
			Center: target.Position(),
			Radius: s.Radius,
		})
		c.queries.Add(2)
	}

	removals := int(float64(len(objects)) * s.RemoveRatio)
	for _, o := range objects[:removals] {
		if status := idx.Remove(o.GUID); status != lattice.Removed {
			return nil, errors.New("removing inserted object failed").
				WithType(ErrTypeInconsistent).
				WithTag("guid", o.GUID).
				WithTag("status", status.String())
		}
		c.removed.Add(1)
	}

	return objects[removals:], nil
}

// randomIn returns a random value in [-n, n).
func randomIn(rnd *rand.Rand, n int64) int64 {
	return rnd.Int63n(2*n) - n
}

// Options configures the smoke test handler.
type Options struct {
	// The scenario run when a request does not provide one.
	Scenario Scenario

	// Creates the index a run works on.
	NewIndex func() (lattice.Index, error)

	SendResult func(context.Context, Results) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a scenario run in the background. The request body
// may override fields of the default scenario.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			latticehttp.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		s := opts.Scenario
		if len(b) != 0 {
			if err := json.Unmarshal(b, &s); err != nil {
				latticehttp.BadRequest(w, errors.New("invalid smoke test request").Wrap(err))
				return
			}
		}
		if err := s.Validate(); err != nil {
			latticehttp.BadRequest(w, err)
			return
		}

		go func() {
			defer func() {
				// Signals tests that the run is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			idx, err := opts.NewIndex()
			if err != nil {
				logs.Warn(errors.New("creating smoke test index failed").Wrap(err))
				return
			}

			res, err := Run(ctx, idx, s)
			if err != nil {
				logs.WithTag("scenario", s.Name).Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("scenario", s.Name).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

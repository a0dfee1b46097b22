package lattice

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/lattice/models"
	"github.com/aukilabs/lattice/spatial"
	"github.com/google/uuid"
)

// IndexWithLogs is an index that counts the operations it serves and logs a
// summary of them periodically.
type IndexWithLogs interface {
	Index

	// Close stops the summary worker and logs the remaining counts.
	Close()
}

// WithLogs wraps idx with operation logs. A summary is logged every
// summaryInterval.
func WithLogs(idx Index, summaryInterval time.Duration) IndexWithLogs {
	ctx, cancel := context.WithCancel(context.Background())

	index := &indexWithLogs{
		Index:              idx,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go index.startSummaryWorker(ctx)
	return index
}

type indexWithLogs struct {
	Index

	summaryInterval    time.Duration
	closeSummaryWorker func()
	closeOnce          sync.Once
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (idx *indexWithLogs) Insert(o *models.Object) Result {
	res := idx.Index.Insert(o)
	idx.incCounter("insert_" + res.Status.String())

	if o != nil {
		logs.WithTag("guid", o.GUID).
			WithTag("result", res.Status.String()).
			Debug("object inserted")
	}
	return res
}

func (idx *indexWithLogs) Remove(guid uuid.UUID) Status {
	s := idx.Index.Remove(guid)
	idx.incCounter("remove_" + s.String())

	logs.WithTag("guid", guid).
		WithTag("result", s.String()).
		Debug("object removed")
	return s
}

func (idx *indexWithLogs) Move(guid uuid.UUID, to spatial.Vector3) Status {
	s := idx.Index.Move(guid, to)
	idx.incCounter("move_" + s.String())
	return s
}

func (idx *indexWithLogs) SetVelocity(guid uuid.UUID, v spatial.Vector3) Status {
	s := idx.Index.SetVelocity(guid, v)
	idx.incCounter("set_velocity_" + s.String())
	return s
}

func (idx *indexWithLogs) QueryPoint(p spatial.Vector3) (*models.Object, bool) {
	idx.incCounter("query_point")
	return idx.Index.QueryPoint(p)
}

func (idx *indexWithLogs) QuerySphere(s spatial.Sphere) []*models.Object {
	idx.incCounter("query_sphere")
	return idx.Index.QuerySphere(s)
}

func (idx *indexWithLogs) Tick() TickSummary {
	summary := idx.Index.Tick()
	idx.incCounter("tick")
	return summary
}

func (idx *indexWithLogs) Close() {
	idx.closeOnce.Do(func() {
		idx.closeSummaryWorker()
		idx.logSummary()
	})
}

func (idx *indexWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(idx.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			idx.logSummary()
		}
	}
}

func (idx *indexWithLogs) incCounter(op string) {
	idx.counterMutex.Lock()
	defer idx.counterMutex.Unlock()

	idx.counter[op]++
}

func (idx *indexWithLogs) logSummary() {
	idx.counterMutex.Lock()
	defer idx.counterMutex.Unlock()

	if len(idx.counter) == 0 {
		return
	}

	entry := logs.WithTag("time_interval", idx.summaryInterval).
		WithTag("objects", idx.Index.Len())

	for k, v := range idx.counter {
		entry = entry.WithTag(k, v)
		delete(idx.counter, k)
	}

	entry.Info("index operation summary")
}

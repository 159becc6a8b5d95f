package setq

import (
	"fmt"

	"github.com/vnykmshr/setq/internal/metrics"
)

// Stats reports the state of a queue at a point in time.
type Stats struct {
	// Name is the region name within the store.
	Name string

	// Len is the number of unique values currently queued.
	Len int

	// FrontKey and BackKey are the minimum and maximum position keys.
	// Meaningful only when Len > 0.
	FrontKey int64
	BackKey  int64

	// NextKey is the position key the next accepted push will use,
	// derived from the region's maximum key; 0 when the queue is empty.
	NextKey int64

	// Counters holds operation counts since the collector was created.
	Counters metrics.Counters
}

// Stats returns current queue statistics.
func (q *Queue[T]) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Stats{}, ErrClosed
	}

	s := Stats{
		Name:     q.region.Name(),
		Len:      len(q.set),
		Counters: q.opts.Metrics.Snapshot(),
	}

	// NextKey is derived the same way a push derives it: one past the
	// region's maximum key, or 0 when the region is empty.
	maxKey, ok, err := q.region.MaxKey()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: read max position key: %v", ErrStore, err)
	}
	if ok {
		s.BackKey = maxKey
		s.NextKey = maxKey + 1
	}

	if s.Len > 0 {
		front, _, ok, err := q.region.First()
		if err != nil {
			return Stats{}, fmt.Errorf("%w: read front key: %v", ErrStore, err)
		}
		if !ok {
			return Stats{}, fmt.Errorf("%w: set has %d members but region is empty", ErrDesync, s.Len)
		}
		s.FrontKey = front
	}

	return s, nil
}

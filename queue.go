// Package setq provides a persistent, deduplicating FIFO/LIFO queue.
//
// A Queue is a durable, ordered collection of unique values backed by an
// ordered on-disk key-value store (bbolt), mirrored by an in-memory
// membership set used for O(1) duplicate rejection. Values can be
// appended at the tail and removed from either end; pushing a value that
// is already queued is a no-op.
//
// Example usage:
//
//	q, err := setq.Open[string]("./myqueue", "jobs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer q.Close()
//
//	ok, err := q.PushBack("job-42") // ok == false if already queued
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	v, ok, err := q.PopFront() // ok == false if the queue is empty
//	if err != nil {
//		log.Fatal(err)
//	}
package setq

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/vnykmshr/setq/internal/codec"
	"github.com/vnykmshr/setq/internal/store"
)

// Queue is a durable, deduplicating queue of unique values of type T.
//
// Entries live in an ordered on-disk region keyed by 8-byte big-endian
// position keys, so the store's minimum and maximum entries are the queue
// front and back. Membership is mirrored in an in-memory set; every
// mutating operation updates the region, forces a flush, and updates the
// set before returning, so the two agree after every successful call and
// immediately after Open.
//
// T must round-trip exactly through the configured codec. Plain
// comparable types (integers, strings, comparable structs) satisfy this
// with the default JSON codec.
//
// A Queue is safe for concurrent use by one owner. Opening the same
// region through multiple handles is not supported; the store's file lock
// rejects a second process.
type Queue[T comparable] struct {
	mu sync.Mutex

	store  *store.Store
	region *store.Region
	set    map[T]struct{}

	opts   Options
	logger *zap.Logger
	closed bool
}

// Open opens or creates the queue named name in the store under dir.
//
// Open scans every stored entry and rebuilds the in-memory set from it,
// so a successful Open guarantees the region and the set agree. An empty
// region yields an empty queue without touching the codec.
//
// Open fails with ErrStore if the store cannot be opened or scanned,
// ErrCodec if a stored value does not deserialize, ErrSchemaMismatch if
// the region was written with an incompatible codec/compression/type
// combination, and ErrDesync if the region holds the same value under two
// keys.
func Open[T comparable](dir, name string, opts ...Option) (*Queue[T], error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(dir, o.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	region, err := st.Region(name)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: open region %q: %v", ErrStore, name, err)
	}

	q := &Queue[T]{
		store:  st,
		region: region,
		set:    make(map[T]struct{}),
		opts:   o,
		logger: o.Logger.Named("setq"),
	}

	stamp, err := q.checkSchema()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if err := q.rebuildSet(); err != nil {
		_ = st.Close()
		return nil, err
	}

	// Regions without a schema record are stamped only once the scan has
	// proven their contents match this handle's type; a failed scan must
	// not lock the region to the wrong descriptor.
	if stamp {
		if err := q.stampSchema(); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	q.logger.Debug("queue opened",
		zap.String("dir", dir),
		zap.String("name", name),
		zap.Int("len", len(q.set)),
	)

	return q, nil
}

// descriptor names the codec/compression/type combination this handle
// writes, for the region's schema record.
func (q *Queue[T]) descriptor() string {
	var zero T
	goType := reflect.TypeOf(&zero).Elem().String()
	return codec.Descriptor(q.opts.Codec.Name(), q.opts.Compression, goType)
}

// checkSchema verifies the region's schema record against this handle's
// descriptor. A region without a record (brand new, or written before
// schema records existed) reports stamp=true and is stamped by the caller
// after the open-time scan succeeds.
func (q *Queue[T]) checkSchema() (stamp bool, err error) {
	rec, ok, err := q.region.Schema()
	if err != nil {
		return false, fmt.Errorf("%w: read schema record: %v", ErrStore, err)
	}
	if !ok {
		return true, nil
	}

	stored, err := codec.DecodeSchema(rec)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if want := q.descriptor(); stored != want {
		return false, fmt.Errorf("%w: region %q stores %q, opened as %q",
			ErrSchemaMismatch, q.region.Name(), stored, want)
	}
	return false, nil
}

// stampSchema durably records this handle's descriptor as the region's
// schema record.
func (q *Queue[T]) stampSchema() error {
	if err := q.region.SetSchema(codec.EncodeSchema(q.descriptor())); err != nil {
		return fmt.Errorf("%w: write schema record: %v", ErrStore, err)
	}
	if err := q.region.Flush(); err != nil {
		return fmt.Errorf("%w: flush schema record: %v", ErrStore, err)
	}
	return nil
}

// rebuildSet populates the membership set from the durable region.
func (q *Queue[T]) rebuildSet() error {
	err := q.region.ForEach(func(key int64, value []byte) error {
		v, err := q.decode(value)
		if err != nil {
			return err
		}
		if _, dup := q.set[v]; dup {
			return fmt.Errorf("%w: region %q holds the value at key %d under two keys",
				ErrDesync, q.region.Name(), key)
		}
		q.set[v] = struct{}{}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCodec) || errors.Is(err, ErrDesync) {
		return err
	}
	return fmt.Errorf("%w: scan region %q: %v", ErrStore, q.region.Name(), err)
}

func (q *Queue[T]) encode(v T) ([]byte, error) {
	data, err := q.opts.Codec.Marshal(v)
	if err != nil {
		q.opts.Metrics.RecordCodecError()
		return nil, fmt.Errorf("%w: serialize value: %v", ErrCodec, err)
	}
	data, err = codec.Compress(data, q.opts.Compression)
	if err != nil {
		q.opts.Metrics.RecordCodecError()
		return nil, fmt.Errorf("%w: compress value: %v", ErrCodec, err)
	}
	return data, nil
}

func (q *Queue[T]) decode(data []byte) (T, error) {
	var v T
	data, err := codec.Decompress(data, q.opts.Compression)
	if err != nil {
		q.opts.Metrics.RecordCodecError()
		return v, fmt.Errorf("%w: decompress value: %v", ErrCodec, err)
	}
	if err := q.opts.Codec.Unmarshal(data, &v); err != nil {
		q.opts.Metrics.RecordCodecError()
		return v, fmt.Errorf("%w: deserialize value: %v", ErrCodec, err)
	}
	return v, nil
}

// IsEmpty reports whether the queue has no values. O(1) on the set; never
// touches the durable store.
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.set) == 0
}

// Len returns the number of queued values. O(1) on the set.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.set)
}

// Contains reports whether value is currently queued. O(1) on the set.
func (q *Queue[T]) Contains(value T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.set[value]
	return ok
}

// Front returns the value at the front of the queue without removing it.
// ok is false when the queue is empty; that is not an error.
func (q *Queue[T]) Front() (value T, ok bool, err error) {
	return q.peek(func() (int64, []byte, bool, error) { return q.region.First() }, "front")
}

// Back returns the value at the back of the queue without removing it.
// ok is false when the queue is empty; that is not an error.
func (q *Queue[T]) Back() (value T, ok bool, err error) {
	return q.peek(func() (int64, []byte, bool, error) { return q.region.Last() }, "back")
}

func (q *Queue[T]) peek(read func() (int64, []byte, bool, error), op string) (T, bool, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, false, ErrClosed
	}

	_, data, ok, err := read()
	if err != nil {
		q.opts.Metrics.RecordStoreError()
		return zero, false, fmt.Errorf("%w: %s: %v", ErrStore, op, err)
	}
	if !ok {
		return zero, false, nil
	}

	v, err := q.decode(data)
	if err != nil {
		return zero, false, err
	}

	q.opts.Metrics.RecordPeek()
	return v, true, nil
}

// PushBack appends value at the tail of the queue.
//
// If value is already queued, PushBack returns false with no durable
// write; duplicate pushes are a no-op, not an error. Otherwise the value
// is stored under a position key one past the current maximum (0 for an
// empty region), flushed to the durable medium, added to the set, and
// PushBack returns true.
func (q *Queue[T]) PushBack(value T) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}

	if _, dup := q.set[value]; dup {
		q.opts.Metrics.RecordDuplicate()
		q.logger.Debug("duplicate push rejected")
		return false, nil
	}

	data, err := q.encode(value)
	if err != nil {
		return false, err
	}

	key, err := q.nextKey()
	if err != nil {
		return false, err
	}

	// The set is updated only after the write is durable, so a failed
	// push never strands a set member without a stored entry.
	if err := q.region.Insert(key, data); err != nil {
		q.opts.Metrics.RecordStoreError()
		return false, fmt.Errorf("%w: insert at key %d: %v", ErrStore, key, err)
	}
	if err := q.region.Flush(); err != nil {
		q.opts.Metrics.RecordStoreError()
		return false, fmt.Errorf("%w: flush after push: %v", ErrStore, err)
	}

	q.set[value] = struct{}{}
	q.opts.Metrics.RecordPush()
	return true, nil
}

// nextKey derives the next position key from the region's current maximum
// at call time rather than a tracked counter, so there is no second piece
// of state that could drift from the store. Keys become sparse after
// removals; only relative order matters.
func (q *Queue[T]) nextKey() (int64, error) {
	maxKey, ok, err := q.region.MaxKey()
	if err != nil {
		q.opts.Metrics.RecordStoreError()
		return 0, fmt.Errorf("%w: read max position key: %v", ErrStore, err)
	}
	if !ok {
		return 0, nil
	}
	return maxKey + 1, nil
}

// PopFront removes and returns the value at the front of the queue.
// ok is false when the queue is empty; that is not an error.
//
// If the removed entry's value is not in the membership set, the region
// and the set have diverged and PopFront fails with ErrDesync; the queue
// must not be used further without a fresh Open.
func (q *Queue[T]) PopFront() (value T, ok bool, err error) {
	return q.pop(func() (int64, []byte, bool, error) { return q.region.PopMin() }, "pop front")
}

// PopBack removes and returns the value at the back of the queue. It
// handles emptiness and desync exactly as PopFront does.
func (q *Queue[T]) PopBack() (value T, ok bool, err error) {
	return q.pop(func() (int64, []byte, bool, error) { return q.region.PopMax() }, "pop back")
}

func (q *Queue[T]) pop(remove func() (int64, []byte, bool, error), op string) (T, bool, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return zero, false, ErrClosed
	}

	key, data, ok, err := remove()
	if err != nil {
		q.opts.Metrics.RecordStoreError()
		return zero, false, fmt.Errorf("%w: %s: %v", ErrStore, op, err)
	}
	if !ok {
		return zero, false, nil
	}

	v, err := q.decode(data)
	if err != nil {
		return zero, false, err
	}

	if _, present := q.set[v]; !present {
		q.opts.Metrics.RecordDesync()
		q.logger.Error("durable entry missing from membership set",
			zap.String("op", op),
			zap.Int64("key", key),
		)
		return zero, false, fmt.Errorf("%w: %s: entry at key %d not in set", ErrDesync, op, key)
	}
	delete(q.set, v)

	if err := q.region.Flush(); err != nil {
		q.opts.Metrics.RecordStoreError()
		return zero, false, fmt.Errorf("%w: flush after %s: %v", ErrStore, op, err)
	}

	q.opts.Metrics.RecordPop()
	return v, true, nil
}

// Clear removes every queued value. The durable region is emptied in a
// single transaction and the set is reset only once that commit is
// flushed, so a failed clear leaves both sides as they were. Clearing an
// empty queue is a no-op.
//
// A Clear that fails leaves the queue untrustworthy; re-open to recover.
func (q *Queue[T]) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if err := q.region.Clear(); err != nil {
		q.opts.Metrics.RecordStoreError()
		return fmt.Errorf("%w: clear region: %v", ErrStore, err)
	}
	if err := q.region.Flush(); err != nil {
		q.opts.Metrics.RecordStoreError()
		return fmt.Errorf("%w: flush after clear: %v", ErrStore, err)
	}

	q.set = make(map[T]struct{})
	q.opts.Metrics.RecordClear()
	return nil
}

// Sync forces pending writes to the durable medium.
func (q *Queue[T]) Sync() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if err := q.region.Flush(); err != nil {
		q.opts.Metrics.RecordStoreError()
		return fmt.Errorf("%w: sync: %v", ErrStore, err)
	}
	return nil
}

// Close releases the store's file handle and lock. Durable state persists
// for the next Open. Close is idempotent; operations on a closed queue
// return ErrClosed.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.store.Close(); err != nil {
		return fmt.Errorf("%w: close store: %v", ErrStore, err)
	}
	return nil
}

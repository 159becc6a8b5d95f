package setq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/setq/internal/codec"
	"github.com/vnykmshr/setq/internal/store"
)

// setupQueue creates a test queue in a fresh temp directory. The queue is
// automatically closed when the test completes.
func setupQueue[T comparable](t *testing.T, opts ...Option) *Queue[T] {
	t.Helper()

	q, err := Open[T](t.TempDir(), "test", opts...)
	require.NoError(t, err, "failed to open queue")

	t.Cleanup(func() { _ = q.Close() })
	return q
}

// pushAll pushes values in order, requiring each to be accepted.
func pushAll[T comparable](t *testing.T, q *Queue[T], values ...T) {
	t.Helper()

	for _, v := range values {
		ok, err := q.PushBack(v)
		require.NoError(t, err, "push %v failed", v)
		require.True(t, ok, "push %v rejected as duplicate", v)
	}
}

func TestPushBack_AcceptsNewValue(t *testing.T) {
	q := setupQueue[string](t)

	ok, err := q.PushBack("1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestPushBack_RejectsDuplicate(t *testing.T) {
	q := setupQueue[int](t)
	pushAll(t, q, 1, 2, 3)

	ok, err := q.PushBack(2)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate push must return false")
	assert.Equal(t, 3, q.Len(), "duplicate push must not change the count")

	// Contents and order are unchanged.
	for _, want := range []int{1, 2, 3} {
		v, ok, err := q.PopFront()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := setupQueue[string](t)
	pushAll(t, q, "a", "b", "c")

	for _, want := range []string{"a", "b", "c"} {
		v, ok, err := q.PopFront()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.True(t, q.IsEmpty())
}

func TestLIFOOrder(t *testing.T) {
	q := setupQueue[string](t)
	pushAll(t, q, "a", "b", "c")

	for _, want := range []string{"c", "b", "a"} {
		v, ok, err := q.PopBack()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.True(t, q.IsEmpty())
}

func TestIsEmpty_Transitions(t *testing.T) {
	q := setupQueue[int](t)
	assert.True(t, q.IsEmpty(), "fresh queue must be empty")

	pushAll(t, q, 7)
	assert.False(t, q.IsEmpty())

	_, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestPeek_DoesNotMutate(t *testing.T) {
	q := setupQueue[string](t)
	pushAll(t, q, "a", "b")

	for i := 0; i < 5; i++ {
		front, ok, err := q.Front()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a", front)

		back, ok, err := q.Back()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", back)
	}
	assert.Equal(t, 2, q.Len())

	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestEmptyQueue_PeeksAndPops(t *testing.T) {
	q := setupQueue[int](t)

	// Empty is a normal outcome, never an error.
	_, ok, err := q.Front()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = q.Back()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = q.PopFront()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = q.PopBack()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	q := setupQueue[int](t)
	pushAll(t, q, 1, 2, 3)

	require.NoError(t, q.Clear())
	assert.True(t, q.IsEmpty())

	// Clearing an already-empty queue is a no-op.
	require.NoError(t, q.Clear())
	assert.True(t, q.IsEmpty())

	// The queue stays usable after a clear.
	pushAll(t, q, 4)
	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestContains(t *testing.T) {
	q := setupQueue[string](t)
	pushAll(t, q, "a", "b")

	assert.True(t, q.Contains("a"))
	assert.False(t, q.Contains("z"))

	_, _, err := q.PopFront()
	require.NoError(t, err)
	assert.False(t, q.Contains("a"))
}

// TestScenario walks the full push/peek/pop sequence end to end.
func TestScenario(t *testing.T) {
	q := setupQueue[int](t)

	ok, err := q.PushBack(1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.PushBack(2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.PushBack(1)
	require.NoError(t, err)
	assert.False(t, ok)

	front, ok, err := q.Front()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, front)

	back, ok, err := q.Back()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, back)

	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok, err = q.PopBack()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.True(t, q.IsEmpty())
}

func TestReopen_RestoresState(t *testing.T) {
	dir := t.TempDir()

	q, err := Open[string](dir, "test")
	require.NoError(t, err)
	pushAll(t, q, "a", "b", "c")
	require.NoError(t, q.Close())

	q, err = Open[string](dir, "test")
	require.NoError(t, err)
	defer q.Close()

	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Contains("a"))
	assert.True(t, q.Contains("b"))
	assert.True(t, q.Contains("c"))

	// Order and duplicate rejection survive the restart.
	ok, err := q.PushBack("b")
	require.NoError(t, err)
	assert.False(t, ok)

	front, ok, err := q.Front()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", front)

	back, ok, err := q.Back()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", back)

	v, ok, err := q.PopBack()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestReopen_KeysStayMonotonic(t *testing.T) {
	dir := t.TempDir()

	q, err := Open[int](dir, "test")
	require.NoError(t, err)
	pushAll(t, q, 10, 20)

	_, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.Close())

	// New pushes land after the surviving entries even though keys are
	// sparse now.
	q, err = Open[int](dir, "test")
	require.NoError(t, err)
	defer q.Close()
	pushAll(t, q, 30)

	for _, want := range []int{20, 30} {
		v, ok, err := q.PopFront()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestReopen_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()

	q, err := Open[string](dir, "test")
	require.NoError(t, err)
	pushAll(t, q, "a")
	require.NoError(t, q.Close())

	_, err = Open[int](dir, "test")
	require.ErrorIs(t, err, ErrSchemaMismatch)
	require.ErrorIs(t, err, ErrCodec, "schema mismatch is a codec error")
}

func TestCompression_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("all work and no play ", 200)

	q, err := Open[string](dir, "test", WithCompression(CompressionSnappy))
	require.NoError(t, err)
	pushAll(t, q, payload, "small")
	require.NoError(t, q.Close())

	q, err = Open[string](dir, "test", WithCompression(CompressionSnappy))
	require.NoError(t, err)
	defer q.Close()

	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, v)
}

func TestCompression_MismatchRejectedAtOpen(t *testing.T) {
	dir := t.TempDir()

	q, err := Open[string](dir, "test", WithCompression(CompressionSnappy))
	require.NoError(t, err)
	pushAll(t, q, "a")
	require.NoError(t, q.Close())

	_, err = Open[string](dir, "test")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestStructValues(t *testing.T) {
	type job struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	q := setupQueue[job](t)
	pushAll(t, q, job{1, "one"}, job{2, "two"})

	ok, err := q.PushBack(job{1, "one"})
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job{1, "one"}, v)
}

func TestClosedQueue(t *testing.T) {
	q := setupQueue[int](t)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "close must be idempotent")

	_, err := q.PushBack(1)
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = q.PopFront()
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = q.Front()
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, q.Clear(), ErrClosed)
	assert.ErrorIs(t, q.Sync(), ErrClosed)

	_, err = q.Stats()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStats(t *testing.T) {
	q := setupQueue[string](t)
	pushAll(t, q, "a", "b", "c")

	_, err := q.PushBack("a")
	require.NoError(t, err)

	_, _, err = q.PopFront()
	require.NoError(t, err)

	stats, err := q.Stats()
	require.NoError(t, err)

	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, 2, stats.Len)
	assert.Equal(t, int64(1), stats.FrontKey)
	assert.Equal(t, int64(2), stats.BackKey)
	assert.Equal(t, int64(3), stats.NextKey)
	assert.Equal(t, uint64(3), stats.Counters.Pushes)
	assert.Equal(t, uint64(1), stats.Counters.DuplicatesRejected)
	assert.Equal(t, uint64(1), stats.Counters.Pops)
}

func TestStats_EmptyQueue(t *testing.T) {
	q := setupQueue[int](t)

	stats, err := q.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Len)
	assert.Equal(t, int64(0), stats.NextKey, "an empty region pushes at key 0")
}

// seedRegion writes raw entries into a region the way a queue would,
// bypassing the queue so tests can stage corrupted or desynced state.
// An empty descriptor leaves the region without a schema record.
func seedRegion(t *testing.T, dir, descriptor string, entries map[int64][]byte) {
	t.Helper()

	st, err := store.Open(dir, 0)
	require.NoError(t, err)
	defer st.Close()

	region, err := st.Region("test")
	require.NoError(t, err)
	if descriptor != "" {
		require.NoError(t, region.SetSchema(codec.EncodeSchema(descriptor)))
	}
	for key, value := range entries {
		require.NoError(t, region.Insert(key, value))
	}
	require.NoError(t, region.Flush())
}

func TestOpen_DuplicateInRegion(t *testing.T) {
	dir := t.TempDir()
	seedRegion(t, dir, "json/none/int", map[int64][]byte{
		0: []byte("7"),
		1: []byte("7"),
	})

	_, err := Open[int](dir, "test")
	require.ErrorIs(t, err, ErrDesync)
}

func TestOpen_UnstampedRegionNotLockedByFailedScan(t *testing.T) {
	dir := t.TempDir()
	seedRegion(t, dir, "", map[int64][]byte{0: []byte(`"abc"`)})

	// Opening an unstamped region with the wrong type fails the scan and
	// must not record that type as the region's schema.
	_, err := Open[int](dir, "test")
	require.ErrorIs(t, err, ErrCodec)

	q, err := Open[string](dir, "test")
	require.NoError(t, err, "correctly typed open must still succeed")

	v, ok, err := q.PopFront()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", v)
	require.NoError(t, q.Close())

	// The successful open stamped the region, so a wrong-typed open is
	// now rejected up front.
	_, err = Open[int](dir, "test")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

// injectEntry writes a raw durable entry behind the queue's back,
// putting the region and the membership set out of agreement.
func injectEntry[T comparable](t *testing.T, q *Queue[T], key int64, value []byte) {
	t.Helper()

	require.NoError(t, q.region.Insert(key, value))
	require.NoError(t, q.region.Flush())
}

func TestPop_DesyncDetected(t *testing.T) {
	// Both ends must report desync identically: a durable entry whose
	// value the set does not contain is ErrDesync, never "empty" and
	// never a returned value.
	t.Run("pop front", func(t *testing.T) {
		q := setupQueue[string](t)
		injectEntry(t, q, 0, []byte(`"ghost"`))

		_, ok, err := q.PopFront()
		require.ErrorIs(t, err, ErrDesync)
		assert.False(t, ok)
	})

	t.Run("pop back", func(t *testing.T) {
		q := setupQueue[string](t)
		pushAll(t, q, "a")
		injectEntry(t, q, 99, []byte(`"ghost"`))

		_, ok, err := q.PopBack()
		require.ErrorIs(t, err, ErrDesync)
		assert.False(t, ok)
	})
}

func TestOpen_CorruptValue(t *testing.T) {
	dir := t.TempDir()
	seedRegion(t, dir, "json/none/int", map[int64][]byte{
		0: []byte("{not json"),
	})

	_, err := Open[int](dir, "test")
	require.ErrorIs(t, err, ErrCodec)
}

func TestOpen_EmptyRegionWithFailingCodec(t *testing.T) {
	// An empty region must not exercise the codec at all.
	q, err := Open[int](t.TempDir(), "test", WithCodec(failingCodec{}))
	require.NoError(t, err)
	defer q.Close()
	assert.True(t, q.IsEmpty())
}

func TestPushBack_SerializationFailure(t *testing.T) {
	q := setupQueue[int](t, WithCodec(failingCodec{}))

	_, err := q.PushBack(1)
	require.ErrorIs(t, err, ErrCodec)
	assert.True(t, q.IsEmpty(), "a failed push must not leave a set member behind")
}

// failingCodec fails every marshal, for exercising ErrCodec paths.
type failingCodec struct{}

func (failingCodec) Name() string { return "failing" }

func (failingCodec) Marshal(any) ([]byte, error) {
	return nil, assert.AnError
}

func (failingCodec) Unmarshal([]byte, any) error {
	return assert.AnError
}

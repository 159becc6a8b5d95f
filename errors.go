package setq

import (
	"errors"
	"fmt"
)

// Common errors returned by setq operations. Errors are wrapped with
// context, so match them with errors.Is.
var (
	// ErrStore indicates the durable store could not be opened, written,
	// iterated, or flushed.
	ErrStore = errors.New("setq: store failure")

	// ErrCodec indicates a value could not be serialized or deserialized.
	// On read paths this means corrupted durable data or a type mismatch
	// against previously stored data.
	ErrCodec = errors.New("setq: codec failure")

	// ErrSchemaMismatch indicates the region was written by an
	// incompatible codec, compression, or value type. Wraps ErrCodec.
	ErrSchemaMismatch = fmt.Errorf("%w: stored schema mismatch", ErrCodec)

	// ErrDesync indicates the durable region and the in-memory membership
	// set no longer agree. The queue instance must not be used after this;
	// re-open (and ideally clear) to recover.
	ErrDesync = errors.New("setq: durable region and membership set out of sync")

	// ErrClosed indicates an operation on a closed queue.
	ErrClosed = errors.New("setq: queue is closed")
)

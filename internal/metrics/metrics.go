// Package metrics tracks queue operation counters.
//
// The collector is dependency-free: plain atomic counters that can be
// read via Snapshot and exported to whatever metrics system the caller
// uses, without forcing one on this library.
package metrics

import "sync/atomic"

// Collector tracks operation counts for one queue. All methods are safe
// for concurrent use.
type Collector struct {
	pushes     atomic.Uint64
	duplicates atomic.Uint64
	pops       atomic.Uint64
	peeks      atomic.Uint64
	clears     atomic.Uint64

	storeErrors atomic.Uint64
	codecErrors atomic.Uint64
	desyncs     atomic.Uint64
}

// NewCollector creates a collector with all counters at zero.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordPush counts an accepted push.
func (c *Collector) RecordPush() { c.pushes.Add(1) }

// RecordDuplicate counts a push rejected as a duplicate.
func (c *Collector) RecordDuplicate() { c.duplicates.Add(1) }

// RecordPop counts a successful pop from either end.
func (c *Collector) RecordPop() { c.pops.Add(1) }

// RecordPeek counts a successful front/back peek.
func (c *Collector) RecordPeek() { c.peeks.Add(1) }

// RecordClear counts a successful clear.
func (c *Collector) RecordClear() { c.clears.Add(1) }

// RecordStoreError counts a durable store failure.
func (c *Collector) RecordStoreError() { c.storeErrors.Add(1) }

// RecordCodecError counts a serialization or deserialization failure.
func (c *Collector) RecordCodecError() { c.codecErrors.Add(1) }

// RecordDesync counts a detected store/set divergence.
func (c *Collector) RecordDesync() { c.desyncs.Add(1) }

// Counters is a point-in-time copy of all collector counters.
type Counters struct {
	Pushes             uint64
	DuplicatesRejected uint64
	Pops               uint64
	Peeks              uint64
	Clears             uint64
	StoreErrors        uint64
	CodecErrors        uint64
	DesyncsDetected    uint64
}

// Snapshot returns a copy of the current counter values.
func (c *Collector) Snapshot() Counters {
	return Counters{
		Pushes:             c.pushes.Load(),
		DuplicatesRejected: c.duplicates.Load(),
		Pops:               c.pops.Load(),
		Peeks:              c.peeks.Load(),
		Clears:             c.clears.Load(),
		StoreErrors:        c.storeErrors.Load(),
		CodecErrors:        c.codecErrors.Load(),
		DesyncsDetected:    c.desyncs.Load(),
	}
}

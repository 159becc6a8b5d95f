package setq

import (
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/setq/internal/codec"
	"github.com/vnykmshr/setq/internal/metrics"
)

// Codec serializes queue values to the byte form stored on disk.
// Implementations must be deterministic and round-trip exact: Unmarshal
// inverts Marshal for every value the queue stores.
type Codec interface {
	// Name identifies the codec in the region's schema record.
	Name() string

	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Compression selects how serialized values are stored.
type Compression = codec.Compression

const (
	// CompressionNone stores codec output as-is (default).
	CompressionNone = codec.CompressionNone

	// CompressionSnappy stores values as snappy blocks.
	CompressionSnappy = codec.CompressionSnappy
)

// Options contains configuration parameters for a Queue.
type Options struct {
	// Codec serializes values.
	// Default: JSON (json-iterator with standard library semantics).
	Codec Codec

	// Compression applied to serialized values. Participates in the
	// region's schema record, so a region must be reopened with the
	// compression it was written with.
	// Default: CompressionNone.
	Compression Compression

	// Logger receives debug events and desync reports.
	// Default: zap.NewNop().
	Logger *zap.Logger

	// Metrics collects operation counters, surfaced through Stats.
	// Default: a fresh collector per queue.
	Metrics *metrics.Collector

	// LockTimeout bounds how long Open waits for the store's file lock
	// when another process holds it. Zero waits indefinitely.
	// Default: 1 second.
	LockTimeout time.Duration
}

// DefaultOptions returns the default configuration options.
func DefaultOptions() Options {
	return Options{
		Codec:       codec.JSON(),
		Compression: CompressionNone,
		Logger:      zap.NewNop(),
		Metrics:     metrics.NewCollector(),
		LockTimeout: time.Second,
	}
}

// Option is a functional option for configuring a Queue.
type Option func(*Options)

// WithCodec sets the value codec.
func WithCodec(c Codec) Option {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithCompression sets the compression applied to serialized values.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics sets the metrics collector, allowing one collector to be
// shared or scraped externally.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithLockTimeout sets how long Open waits for the store's file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.LockTimeout = d
	}
}

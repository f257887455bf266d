// This file implements the fluent builder API for creating Slab instances.
// Builders are immutable - each method returns a new builder with the updated
// configuration.

package slabgo

import (
	"github.com/hupe1980/slabgo/codec"
	"github.com/hupe1980/slabgo/resource"
	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/snapshot"
	"github.com/hupe1980/slabgo/wal"
)

// NewBuilder creates a builder for a Slab.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents accidental
// state sharing.
//
// Example:
//
//	db, err := slabgo.NewBuilder[Order]().
//	    GrowthPolicy(slab.ConstantGrowth{Block: 4096}).
//	    WAL("./wal", func(o *wal.Options) {
//	        o.AutoCheckpointOps = 10000
//	    }).
//	    SnapshotPath("./data/orders.slab").
//	    Build()
func NewBuilder[T any]() Builder[T] {
	return Builder[T]{}
}

// Builder is an immutable fluent builder for creating Slab instances.
// Each method returns a new builder with the updated configuration.
type Builder[T any] struct {
	growthPolicy    slab.GrowthPolicy
	initialCapacity int
	codec           codec.Codec
	logger          *Logger
	metrics         MetricsCollector
	controller      *resource.Controller
	walEnabled      bool
	walPath         string
	walOptions      []func(*wal.Options)
	snapshotPath    string
	compression     *snapshot.CompressionType
}

// GrowthPolicy sets the growth policy for the underlying store.
func (b Builder[T]) GrowthPolicy(p slab.GrowthPolicy) Builder[T] {
	b.growthPolicy = p
	return b
}

// InitialCapacity pre-allocates room for at least n values.
func (b Builder[T]) InitialCapacity(n int) Builder[T] {
	b.initialCapacity = n
	return b
}

// Codec sets the codec used for WAL payloads and snapshot records.
func (b Builder[T]) Codec(c codec.Codec) Builder[T] {
	b.codec = c
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder[T]) Logger(l *Logger) Builder[T] {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder[T]) Metrics(mc MetricsCollector) Builder[T] {
	b.metrics = mc
	return b
}

// ResourceController attaches a resource controller that gates slot block
// allocations and rate-limits snapshot I/O.
func (b Builder[T]) ResourceController(rc *resource.Controller) Builder[T] {
	b.controller = rc
	return b
}

// WAL enables Write-Ahead Logging for durability.
func (b Builder[T]) WAL(path string, optFns ...func(*wal.Options)) Builder[T] {
	b.walEnabled = true
	b.walPath = path
	b.walOptions = optFns
	return b
}

// SnapshotPath sets the path for automatic snapshots during WAL
// auto-checkpoint. When set, the store saves snapshots whenever WAL
// thresholds are exceeded.
func (b Builder[T]) SnapshotPath(path string) Builder[T] {
	b.snapshotPath = path
	return b
}

// Compression selects the snapshot compression. Default: LZ4.
func (b Builder[T]) Compression(c snapshot.CompressionType) Builder[T] {
	b.compression = &c
	return b
}

// Build creates the Slab instance.
func (b Builder[T]) Build() (*Slab[T], error) {
	var opts []Option
	if b.growthPolicy != nil {
		opts = append(opts, WithGrowthPolicy(b.growthPolicy))
	}
	if b.initialCapacity > 0 {
		opts = append(opts, WithInitialCapacity(b.initialCapacity))
	}
	if b.codec != nil {
		opts = append(opts, WithCodec(b.codec))
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		opts = append(opts, WithResourceController(b.controller))
	}
	if b.walEnabled {
		opts = append(opts, WithWAL(b.walPath, b.walOptions...))
	}
	if b.snapshotPath != "" {
		opts = append(opts, WithSnapshotPath(b.snapshotPath))
	}
	if b.compression != nil {
		opts = append(opts, WithSnapshotCompression(*b.compression))
	}

	return New[T](opts...)
}

// MustBuild creates the Slab instance, panicking on error.
func (b Builder[T]) MustBuild() *Slab[T] {
	db, err := b.Build()
	if err != nil {
		panic(err)
	}
	return db
}

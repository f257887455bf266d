package slabgo

import (
	"log/slog"

	"github.com/hupe1980/slabgo/codec"
	"github.com/hupe1980/slabgo/resource"
	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/snapshot"
	"github.com/hupe1980/slabgo/wal"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	growthPolicy     slab.GrowthPolicy
	initialCapacity  int
	controller       *resource.Controller
	walPath          string
	walOptions       []func(*wal.Options)
	snapshotPath     string // Path for auto-checkpoint snapshots
	compression      snapshot.CompressionType
}

// Option configures Slab constructor/load behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
//
// Breaking changes are expected while slabgo is pre-release.
type Option func(*options)

// WithCodec configures the codec used for encoding WAL payloads and
// snapshot sections.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithGrowthPolicy configures how the underlying store grows when it runs
// out of free slots. See the slab package for the available policies.
//
// Example:
//
//	db := slabgo.New[string](slabgo.WithGrowthPolicy(slab.ConstantGrowth{Block: 4096}))
func WithGrowthPolicy(p slab.GrowthPolicy) Option {
	return func(o *options) {
		o.growthPolicy = p
	}
}

// WithInitialCapacity pre-allocates room for at least n values, avoiding
// growth steps during initial loading.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithResourceController attaches a resource controller that gates slot
// block allocations against a memory budget and rate-limits snapshot I/O.
// Pass nil to disable resource control.
//
// Example:
//
//	rc := resource.NewController(resource.Config{MaxMemoryBytes: 1 << 30})
//	db := slabgo.New[string](slabgo.WithResourceController(rc))
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithWAL configures Write-Ahead Logging for durability.
// WAL is immutable after database creation - it cannot be enabled/disabled at runtime.
//
// Example:
//
//	db, _ := slabgo.New[string](
//	    slabgo.WithWAL("./wal", func(o *wal.Options) {
//	        o.DurabilityMode = wal.DurabilityGroupCommit
//	        o.GroupCommitInterval = 10 * time.Millisecond
//	    }),
//	)
func WithWAL(path string, optFns ...func(*wal.Options)) Option {
	return func(o *options) {
		o.walPath = path
		o.walOptions = optFns
	}
}

// WithSnapshotPath configures the path for automatic snapshots.
// When set along with WAL auto-checkpoint thresholds (AutoCheckpointOps, AutoCheckpointMB),
// the database will automatically save snapshots when thresholds are exceeded.
//
// Example:
//
//	db, _ := slabgo.New[string](
//	    slabgo.WithWAL("./wal", func(o *wal.Options) {
//	        o.AutoCheckpointOps = 10000  // Auto-save every 10k ops
//	        o.AutoCheckpointMB = 100     // Or at 100MB WAL size
//	    }),
//	    slabgo.WithSnapshotPath("./data/snapshot.bin"),
//	)
func WithSnapshotPath(path string) Option {
	return func(o *options) {
		o.snapshotPath = path
	}
}

// WithSnapshotCompression selects the compression applied to snapshot
// sections written by Checkpoint, SaveToFile and SaveToWriter.
func WithSnapshotCompression(c snapshot.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &slabgo.BasicMetricsCollector{}
//	db, _ := slabgo.New[string](slabgo.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := slabgo.NewJSONLogger(slog.LevelInfo)
//	db, _ := slabgo.New[string](slabgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      snapshot.CompressionLZ4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}

	if o.logger == nil {
		o.logger = NoopLogger()
	}

	return o
}

// storeOptions translates the facade configuration into options for the
// underlying slab store.
func (o *options) storeOptions() []func(*slab.Options) {
	return []func(*slab.Options){func(so *slab.Options) {
		if o.growthPolicy != nil {
			so.GrowthPolicy = o.growthPolicy
		}

		if o.initialCapacity > 0 {
			// The facade counts usable values; the core counts committed
			// slots, which include the reserved zero slot.
			so.InitialCapacity = o.initialCapacity + 1
		}

		if o.controller != nil {
			so.Gate = o.controller
		}
	}}
}

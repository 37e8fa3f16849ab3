package repairfs

import (
	"log/slog"

	"github.com/hupe1980/repairfs/archive"
	"github.com/hupe1980/repairfs/notify"
	"github.com/hupe1980/repairfs/resource"
	"github.com/hupe1980/repairfs/verify"
)

type options struct {
	pageSize           int
	workers            int
	logger             *Logger
	metricsCollector   MetricsCollector
	notifier           *notify.Notifier
	controller         *resource.Controller
	archiveStore       archive.Store
	archiveName        string
	archiveCompression archive.Compression
	archiveCatalog     archive.Catalog
}

// Option configures salvage and verify behavior.
type Option func(*options)

// WithPageSize sets the copy/scan granularity in bytes.
// Defaults to verify.DefaultPageSize (4096). Match it to the page size of
// the storage engine that produced the file so damage maps to real pages.
func WithPageSize(pageSize int) Option {
	return func(o *options) {
		o.pageSize = pageSize
	}
}

// WithWorkers sets the number of concurrent page workers. Positioned I/O is
// offset-explicit, so pages can be copied in parallel safely. Defaults to 4.
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
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

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithNotifier injects the broadcast point that receives every OS-level
// failure. Defaults to notify.Default.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithController throttles salvage I/O through a resource controller.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithArchive additionally archives the salvage output into store under
// name once the copy completes.
func WithArchive(store archive.Store, name string) Option {
	return func(o *options) {
		o.archiveStore = store
		o.archiveName = name
	}
}

// WithArchiveCatalog records the entry descriptor produced by WithArchive
// in catalog, so a later RestoreFromCatalog can verify the entry without
// the caller persisting the descriptor itself.
func WithArchiveCatalog(catalog archive.Catalog) Option {
	return func(o *options) {
		o.archiveCatalog = catalog
	}
}

// WithArchiveCompression selects the codec used by WithArchive.
// Defaults to zstd.
func WithArchiveCompression(c archive.Compression) Option {
	return func(o *options) {
		o.archiveCompression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		pageSize:           verify.DefaultPageSize,
		workers:            4,
		logger:             NoopLogger(),
		metricsCollector:   NoopMetricsCollector{},
		notifier:           notify.Default,
		archiveCompression: archive.CompressionZstd,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.pageSize <= 0 {
		o.pageSize = verify.DefaultPageSize
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	return o
}

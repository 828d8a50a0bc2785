package revision

import (
	"gorm.io/gorm"

	"github.com/emrgen/revision/internal/cache"
	"github.com/emrgen/revision/internal/compare"
	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/job"
	"github.com/emrgen/revision/internal/jobs"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/service"
	"github.com/emrgen/revision/internal/store"
)

// Engine bundles the version control services over one store. Embedding a
// library caller constructs it once and shares it; every service is safe
// for concurrent use.
type Engine struct {
	Store     store.Store
	Versions  *service.VersionService
	Approvals *service.ApprovalService
	Compares  *service.CompareService
	Rollbacks *service.RollbackService
	Exports   *service.ExportService
	Notifier  *queue.ChannelNotifier

	executor *jobs.TaskExecutor
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	statCache   cache.StatCache
	compression string
	keep        int
}

// WithStatCache sets the hot cache for comparison reports.
func WithStatCache(c cache.StatCache) Option {
	return func(o *options) {
		o.statCache = c
	}
}

// WithCompression selects the codec for version content blobs.
func WithCompression(name string) Option {
	return func(o *options) {
		o.compression = name
	}
}

// WithRetention sets the cleanup job's per-content retention floor.
func WithRetention(keep int) Option {
	return func(o *options) {
		o.keep = keep
	}
}

// NewEngine wires the services over a database connection.
func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	o := &options{
		compression: "gzip",
		keep:        50,
	}
	for _, opt := range opts {
		opt(o)
	}

	st := store.NewGormStore(db)
	notifier := queue.NewChannelNotifier(0)
	comparator := compare.New()

	versions := service.NewVersionService(st, o.compression)

	engine := &Engine{
		Store:     st,
		Versions:  versions,
		Approvals: service.NewApprovalService(st, notifier),
		Compares:  service.NewCompareService(st, o.statCache, comparator),
		Rollbacks: service.NewRollbackService(st, comparator, notifier),
		Exports:   service.NewExportService(st),
		Notifier:  notifier,
	}

	engine.executor = jobs.NewTaskExecutor(nil, []jobs.CronJob{
		job.NewVersionCleaner(st, versions, o.keep),
		job.NewStatPruner(st, job.DefaultStatMaxAge),
	})

	return engine
}

// NewEngineFromConfig wires the engine from environment configuration.
func NewEngineFromConfig(cnf *config.Config) *Engine {
	opts := []Option{
		WithCompression(cnf.Compression),
		WithRetention(cnf.KeepVersions),
	}
	if client := config.GetRedis(cnf); client != nil {
		opts = append(opts, WithStatCache(cache.NewRedisClient(client)))
	}
	return NewEngine(config.GetDb(cnf), opts...)
}

// Migrate creates or updates the database schema.
func (e *Engine) Migrate() error {
	return e.Store.Migrate()
}

// StartJobs begins the background maintenance jobs.
func (e *Engine) StartJobs() {
	e.executor.Run()
}

// StopJobs stops the background maintenance jobs.
func (e *Engine) StopJobs() {
	e.executor.Stop()
}

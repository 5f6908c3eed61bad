// Package worker implements the asynq task handlers behind document indexing
// and vector index maintenance.
package worker

import (
	"time"

	"corpus/internal/config"
	"corpus/internal/redisx"
	"corpus/internal/services"
	"corpus/internal/store"
)

// Deps bundles everything the task handlers touch. Handlers are built from
// one Deps value so tests can swap in fakes piecemeal.
type Deps struct {
	Datasets    store.DatasetStore
	Documents   store.DocumentStore
	Vectors     store.VectorStore
	Features    services.FeatureService
	Runner      services.IndexingRunner
	Embedder    services.Embedder
	Credentials services.DatasourceCredentialProvider
	Extractors  services.ExtractorFactory
	Jobs        store.JobClient
	Redis       redisx.Client

	// BatchUploadLimit caps documents per batch for billed tenants.
	BatchUploadLimit int
	// TenantConcurrency caps how many waiting tasks one finishing task may
	// dispatch.
	TenantConcurrency int
	// TaskTTL is the lifetime of a tenant's running flag.
	TaskTTL time.Duration
}

// Configure fills the tuning knobs from config, leaving collaborators to the
// caller.
func (d *Deps) Configure(cfg *config.Config) {
	d.BatchUploadLimit = cfg.Indexing.BatchUploadLimit
	d.TenantConcurrency = cfg.Indexing.TenantIsolatedTaskConcurrency
	d.TaskTTL = time.Duration(cfg.Indexing.TaskTTLSeconds) * time.Second
}

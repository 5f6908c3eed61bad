package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus/internal/models"
	"corpus/internal/redisx/redisxtest"
	"corpus/internal/services"
	"corpus/internal/taskqueue"
	"corpus/internal/tasks"
)

func testDeps() (Deps, *fakeDocumentStore, *fakeRunner, *fakeJobClient, *redisxtest.Fake) {
	docs := newFakeDocumentStore()
	runner := &fakeRunner{}
	jobs := &fakeJobClient{}
	rdb := redisxtest.New()
	deps := Deps{
		Datasets:          newFakeDatasetStore(),
		Documents:         docs,
		Features:          &fakeFeatureService{},
		Runner:            runner,
		Jobs:              jobs,
		Redis:             rdb,
		Vectors:           newFakeVectorStore(),
		Embedder:          &fakeEmbedder{},
		BatchUploadLimit:  20,
		TenantConcurrency: 1,
		TaskTTL:           10 * time.Minute,
	}
	return deps, docs, runner, jobs, rdb
}

func seedDataset(deps Deps, dataset *models.Dataset) {
	deps.Datasets.(*fakeDatasetStore).datasets[dataset.ID] = dataset
}

func seedDocuments(docs *fakeDocumentStore, documents ...*models.Document) {
	for _, d := range documents {
		docs.documents[d.ID] = d
	}
}

func indexingTask(tenantID, datasetID string, ids []string) *asynq.Task {
	return asynq.NewTask(tasks.TypeDocumentIndexing, tasks.Encode(tasks.DocumentIndexingPayload{
		TenantID: tenantID, DatasetID: datasetID, DocumentIDs: ids,
	}))
}

func billedDeps(deps Deps, plan services.Plan, vectorSpace services.VectorSpaceFeatures) Deps {
	deps.Features = &fakeFeatureService{features: services.Features{
		Billing: services.BillingFeatures{
			Enabled:      true,
			Subscription: services.Subscription{Plan: plan},
		},
		VectorSpace: vectorSpace,
	}}
	return deps
}

func TestDocumentIndexingMarksParsingAndRunsRunner(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc := &models.Document{ID: "doc-1", DatasetID: "ds-1", IndexingStatus: models.IndexingStatusWaiting}
	seedDocuments(docs, doc)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	assert.Equal(t, models.IndexingStatusParsing, doc.IndexingStatus)
	assert.NotNil(t, doc.ProcessingStartedAt)
	require.Len(t, runner.runs, 1)
	assert.Equal(t, []*models.Document{doc}, runner.runs[0])
}

func TestDocumentIndexingMissingDatasetSkipsSilently(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "missing", []string{"doc-1"}))
	require.NoError(t, err)
	assert.Empty(t, runner.runs)
	assert.Empty(t, docs.batches)
}

func TestDocumentIndexingMissingDocumentsAreDropped(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc := &models.Document{ID: "doc-1", DatasetID: "ds-1"}
	seedDocuments(docs, doc)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1", "ghost"}))
	require.NoError(t, err)
	require.Len(t, runner.runs, 1)
	assert.Equal(t, []*models.Document{doc}, runner.runs[0])
}

func TestDocumentIndexingEmptyBatchStillRunsRunner(t *testing.T) {
	deps, _, runner, _, _ := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", nil))
	require.NoError(t, err)
	require.Len(t, runner.runs, 1)
	assert.Empty(t, runner.runs[0])
}

func TestDocumentIndexingBatchUploadLimit(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanTeam, services.VectorSpaceFeatures{})
	deps.BatchUploadLimit = 2
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc1 := &models.Document{ID: "doc-1", DatasetID: "ds-1"}
	doc2 := &models.Document{ID: "doc-2", DatasetID: "ds-1"}
	doc3 := &models.Document{ID: "doc-3", DatasetID: "ds-1"}
	seedDocuments(docs, doc1, doc2, doc3)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1", "doc-2", "doc-3"}))
	require.NoError(t, err, "quota violations finish the task, they are not retried")

	assert.Empty(t, runner.runs)
	for _, doc := range []*models.Document{doc1, doc2, doc3} {
		assert.Equal(t, models.IndexingStatusError, doc.IndexingStatus)
		require.NotNil(t, doc.Error)
		assert.Contains(t, *doc.Error, "batch upload limit")
		assert.NotNil(t, doc.StoppedAt)
	}
}

func TestDocumentIndexingSandboxRejectsMultiDocumentBatch(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanSandbox, services.VectorSpaceFeatures{})
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc1 := &models.Document{ID: "doc-1", DatasetID: "ds-1"}
	doc2 := &models.Document{ID: "doc-2", DatasetID: "ds-1"}
	seedDocuments(docs, doc1, doc2)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1", "doc-2"}))
	require.NoError(t, err)

	assert.Empty(t, runner.runs)
	require.NotNil(t, doc1.Error)
	assert.Contains(t, *doc1.Error, "does not support batch upload")
}

func TestDocumentIndexingSandboxAllowsSingleDocument(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanSandbox, services.VectorSpaceFeatures{})
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)
	assert.Len(t, runner.runs, 1)
}

func TestDocumentIndexingVectorSpaceLimit(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanTeam, services.VectorSpaceFeatures{Limit: 100, Size: 100})
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc := &models.Document{ID: "doc-1", DatasetID: "ds-1"}
	seedDocuments(docs, doc)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	assert.Empty(t, runner.runs)
	require.NotNil(t, doc.Error)
	assert.Contains(t, *doc.Error, "over the limit")
}

func TestDocumentIndexingZeroVectorSpaceLimitMeansUnlimited(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanTeam, services.VectorSpaceFeatures{Limit: 0, Size: 1 << 30})
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)
	assert.Len(t, runner.runs, 1)
}

func TestDocumentIndexingNegativeVectorSpaceLimitMeansUnlimited(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	deps = billedDeps(deps, services.PlanTeam, services.VectorSpaceFeatures{Limit: -1, Size: 1 << 30})
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)
	assert.Len(t, runner.runs, 1)
}

func TestDocumentIndexingBillingDisabledTwoDocumentFlow(t *testing.T) {
	deps, docs, runner, _, rdb := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc1 := &models.Document{ID: "doc-1", DatasetID: "ds-1", IndexingStatus: models.IndexingStatusWaiting}
	doc2 := &models.Document{ID: "doc-2", DatasetID: "ds-1", IndexingStatus: models.IndexingStatusWaiting}
	seedDocuments(docs, doc1, doc2)

	q := taskqueue.New(rdb, "tenant-1", tasks.TaskKindDocumentIndexing, 10*time.Minute)
	rdb.Set(q.TaskKey(), "1")

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1", "doc-2"}))
	require.NoError(t, err)

	for _, doc := range []*models.Document{doc1, doc2} {
		assert.Equal(t, models.IndexingStatusParsing, doc.IndexingStatus)
		assert.NotNil(t, doc.ProcessingStartedAt)
	}
	require.Len(t, runner.runs, 1)
	_, ok := rdb.Value(q.TaskKey())
	assert.False(t, ok, "running flag must be released when no backlog waits")
}

func TestDocumentIndexingPausedRunnerEndsNormally(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	runner.err = &models.DocumentIsPausedError{DocumentID: "doc-1"}
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc := &models.Document{ID: "doc-1", DatasetID: "ds-1"}
	seedDocuments(docs, doc)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)
	assert.Nil(t, doc.Error)
}

func TestDocumentIndexingRunnerErrorLeavesStatusAsIs(t *testing.T) {
	deps, docs, runner, _, _ := testDeps()
	runner.err = errors.New("extract failed")
	runner.onRun = func(documents []*models.Document) {
		for _, d := range documents {
			d.IndexingStatus = models.IndexingStatusIndexing
		}
	}
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	doc := &models.Document{ID: "doc-1", DatasetID: "ds-1", IndexingStatus: models.IndexingStatusWaiting}
	seedDocuments(docs, doc)

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	// The failure is swallowed: whatever status the runner reached stays,
	// and no error is written onto the document.
	assert.Equal(t, models.IndexingStatusIndexing, doc.IndexingStatus)
	assert.Nil(t, doc.Error)
	assert.Nil(t, doc.StoppedAt)
}

func TestDocumentIndexingCleanupDispatchesWaitingTask(t *testing.T) {
	deps, docs, _, jobs, rdb := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	q := taskqueue.New(rdb, "tenant-1", tasks.TaskKindDocumentIndexing, 10*time.Minute)
	rdb.Set(q.TaskKey(), "1")
	require.NoError(t, q.Push(context.Background(), taskqueue.Task{TenantID: "tenant-1", DatasetID: "ds-2", DocumentIDs: []string{"doc-9"}}))

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	require.Len(t, jobs.indexing, 1)
	assert.Equal(t, "ds-2", jobs.indexing[0].DatasetID)
	assert.Equal(t, []string{"doc-9"}, jobs.indexing[0].DocumentIDs)

	// The running flag was refreshed for the dispatched task, not deleted.
	_, ok := rdb.Value(q.TaskKey())
	assert.True(t, ok)
	ttl, _ := rdb.TTL(q.TaskKey())
	assert.Equal(t, 10*time.Minute, ttl)
}

func TestDocumentIndexingCleanupRespectsConcurrencyLimit(t *testing.T) {
	deps, docs, _, jobs, rdb := testDeps()
	deps.TenantConcurrency = 2
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	q := taskqueue.New(rdb, "tenant-1", tasks.TaskKindDocumentIndexing, 10*time.Minute)
	for _, ds := range []string{"ds-2", "ds-3", "ds-4"} {
		require.NoError(t, q.Push(context.Background(), taskqueue.Task{TenantID: "tenant-1", DatasetID: ds}))
	}

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	require.Len(t, jobs.indexing, 2)
	assert.Equal(t, "ds-2", jobs.indexing[0].DatasetID)
	assert.Equal(t, "ds-3", jobs.indexing[1].DatasetID)
	assert.Equal(t, 1, rdb.ListLen(q.QueueKey()), "third task stays parked")
}

func TestDocumentIndexingCleanupDeletesFlagWhenQueueEmpty(t *testing.T) {
	deps, docs, _, jobs, rdb := testDeps()
	seedDataset(deps, &models.Dataset{ID: "ds-1", TenantID: "tenant-1"})
	seedDocuments(docs, &models.Document{ID: "doc-1", DatasetID: "ds-1"})

	q := taskqueue.New(rdb, "tenant-1", tasks.TaskKindDocumentIndexing, 10*time.Minute)
	rdb.Set(q.TaskKey(), "1")

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "ds-1", []string{"doc-1"}))
	require.NoError(t, err)

	assert.Empty(t, jobs.indexing)
	_, ok := rdb.Value(q.TaskKey())
	assert.False(t, ok, "running flag must be released for an idle tenant")
}

func TestDocumentIndexingCleanupRunsEvenWhenBatchFails(t *testing.T) {
	deps, _, _, jobs, rdb := testDeps()
	// Dataset missing on purpose: the batch is skipped, cleanup still runs.
	q := taskqueue.New(rdb, "tenant-1", tasks.TaskKindDocumentIndexing, 10*time.Minute)
	rdb.Set(q.TaskKey(), "1")
	require.NoError(t, q.Push(context.Background(), taskqueue.Task{TenantID: "tenant-1", DatasetID: "ds-2", DocumentIDs: []string{"doc-9"}}))

	err := HandleDocumentIndexing(deps)(context.Background(), indexingTask("tenant-1", "missing", []string{"doc-1"}))
	require.NoError(t, err)
	require.Len(t, jobs.indexing, 1)
	assert.Equal(t, "ds-2", jobs.indexing[0].DatasetID)
}

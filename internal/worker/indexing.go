package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"corpus/internal/models"
	"corpus/internal/services"
	"corpus/internal/store"
	"corpus/internal/taskqueue"
	"corpus/internal/tasks"
)

// HandleDocumentIndexing runs one tenant's indexing batch and then drains the
// tenant's waiting queue. The queue cleanup runs even when the batch itself
// failed, otherwise a tenant with one bad batch would starve forever.
func HandleDocumentIndexing(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DocumentIndexingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode document indexing payload: %v: %w", err, asynq.SkipRetry)
		}
		queue, _ := asynq.GetQueueName(ctx)
		if queue == "" {
			queue = tasks.QueuePriority
		}
		return runWithTenantQueue(ctx, deps, queue, p.TenantID, p.DatasetID, p.DocumentIDs)
	}
}

func runWithTenantQueue(ctx context.Context, deps Deps, queue, tenantID, datasetID string, documentIDs []string) error {
	logger := logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"dataset_id": datasetID,
	})

	if err := runDocumentIndexing(ctx, deps, datasetID, documentIDs); err != nil {
		logger.WithError(err).Error("document indexing batch failed")
	}

	q := taskqueue.New(deps.Redis, tenantID, tasks.TaskKindDocumentIndexing, deps.TaskTTL)
	limit := deps.TenantConcurrency
	if limit <= 0 {
		limit = 1
	}
	waiting, err := q.PullTasks(ctx, limit)
	if err != nil {
		return fmt.Errorf("pull waiting tasks for tenant %s: %w", tenantID, err)
	}
	if len(waiting) == 0 {
		return q.DeleteTaskKey(ctx)
	}
	for _, next := range waiting {
		if err := q.SetTaskWaitingTime(ctx); err != nil {
			return err
		}
		if err := deps.Jobs.EnqueueDocumentIndexing(ctx, queue, tenantID, next.DatasetID, next.DocumentIDs); err != nil {
			return fmt.Errorf("dispatch waiting task for tenant %s: %w", tenantID, err)
		}
	}
	return nil
}

// runDocumentIndexing validates quota, marks the batch parsing and hands it
// to the indexing runner. Quota violations are terminal: the documents are
// marked errored and the task ends without a retry. A runner failure is
// logged and otherwise left alone, keeping whatever status the runner
// reached.
func runDocumentIndexing(ctx context.Context, deps Deps, datasetID string, documentIDs []string) error {
	start := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"dataset_id":     datasetID,
		"document_count": len(documentIDs),
	})
	logger.Info("processing document indexing batch")

	dataset, err := deps.Datasets.GetDataset(ctx, datasetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("dataset not found, skipping batch")
			return nil
		}
		return fmt.Errorf("load dataset %s: %w", datasetID, err)
	}

	documents, err := deps.Documents.GetDocumentsByIDs(ctx, datasetID, documentIDs)
	if err != nil {
		return fmt.Errorf("load documents for dataset %s: %w", datasetID, err)
	}

	features, err := deps.Features.GetFeatures(ctx, dataset.TenantID)
	if err != nil {
		return fmt.Errorf("load features for tenant %s: %w", dataset.TenantID, err)
	}
	if features.Billing.Enabled {
		count := len(documentIDs)
		if count > deps.BatchUploadLimit {
			return markDocumentsError(ctx, deps, documents,
				fmt.Sprintf("You have reached the batch upload limit of %d.", deps.BatchUploadLimit))
		}
		if features.Billing.Subscription.Plan == services.PlanSandbox && count > 1 {
			return markDocumentsError(ctx, deps, documents,
				"Your current plan does not support batch upload, please upgrade your plan.")
		}
		if vs := features.VectorSpace; vs.Limit > 0 && vs.Size >= vs.Limit {
			return markDocumentsError(ctx, deps, documents,
				"Your total vector space is over the limit, please upgrade your plan.")
		}
	}

	now := time.Now().UTC()
	for _, document := range documents {
		document.IndexingStatus = models.IndexingStatusParsing
		document.ProcessingStartedAt = &now
	}
	if err := deps.Documents.UpdateDocuments(ctx, documents); err != nil {
		return fmt.Errorf("mark documents parsing: %w", err)
	}

	// The runner runs even for an empty batch; it owns status transitions
	// from here on.
	if err := deps.Runner.Run(ctx, documents); err != nil {
		if models.IsDocumentIsPausedError(err) {
			logger.Info("indexing paused by user")
			return nil
		}
		logger.WithError(err).Warn("indexing runner failed, document statuses left as-is")
		return nil
	}

	logger.WithField("latency", time.Since(start)).Info("processed document indexing batch")
	return nil
}

func markDocumentsError(ctx context.Context, deps Deps, documents []*models.Document, message string) error {
	now := time.Now().UTC()
	for _, document := range documents {
		document.IndexingStatus = models.IndexingStatusError
		msg := message
		document.Error = &msg
		document.StoppedAt = &now
	}
	if err := deps.Documents.UpdateDocuments(ctx, documents); err != nil {
		return fmt.Errorf("mark documents errored: %w", err)
	}
	return nil
}

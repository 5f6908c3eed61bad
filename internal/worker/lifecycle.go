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
	"corpus/internal/tasks"
)

// HandleRecoverDocumentIndexing resumes indexing for a document that has been
// un-paused.
func HandleRecoverDocumentIndexing(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.RecoverDocumentIndexingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode recover payload: %v: %w", err, asynq.SkipRetry)
		}
		logger := logrus.WithField("document_id", p.DocumentID)

		document, err := deps.Documents.GetDocument(ctx, p.DatasetID, p.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Info("document not found, skipping recover")
				return nil
			}
			return fmt.Errorf("load document %s: %w", p.DocumentID, err)
		}
		switch document.IndexingStatus {
		case models.IndexingStatusWaiting, models.IndexingStatusParsing, models.IndexingStatusIndexing:
		default:
			logger.WithField("status", document.IndexingStatus).Info("document not recoverable, skipping")
			return nil
		}

		if err := deps.Runner.Run(ctx, []*models.Document{document}); err != nil {
			if models.IsDocumentIsPausedError(err) {
				logger.Info("document paused again during recover")
				return nil
			}
			logger.WithError(err).Warn("recover indexing failed")
			return nil
		}
		logger.Info("recovered document indexing")
		return nil
	}
}

// HandleRetryDocumentIndexing re-runs indexing for a batch of errored
// documents. The per-document retry flags are cleared when the task finishes,
// whatever the outcome, so a stuck flag cannot block retries forever.
func HandleRetryDocumentIndexing(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.RetryDocumentIndexingPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode retry payload: %v: %w", err, asynq.SkipRetry)
		}
		logger := logrus.WithFields(logrus.Fields{
			"dataset_id": p.DatasetID,
			"user_id":    p.UserID,
		})
		defer func() {
			for _, id := range p.DocumentIDs {
				if err := deps.Redis.Del(ctx, fmt.Sprintf("document_%s_is_retried", id)); err != nil {
					logger.WithError(err).WithField("document_id", id).Error("clear retry flag failed")
				}
			}
		}()

		documents, err := deps.Documents.GetDocumentsByIDs(ctx, p.DatasetID, p.DocumentIDs)
		if err != nil {
			return fmt.Errorf("load documents for retry: %w", err)
		}
		if len(documents) == 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, document := range documents {
			document.IndexingStatus = models.IndexingStatusParsing
			document.ProcessingStartedAt = &now
		}
		if err := deps.Documents.UpdateDocuments(ctx, documents); err != nil {
			return fmt.Errorf("mark documents parsing for retry: %w", err)
		}

		if err := deps.Runner.Run(ctx, documents); err != nil {
			if models.IsDocumentIsPausedError(err) {
				logger.Info("retry paused by user")
				return nil
			}
			logger.WithError(err).Warn("retry indexing failed")
			return nil
		}
		logger.WithField("document_count", len(documents)).Info("retried document indexing")
		return nil
	}
}

// HandleAddDocumentToIndex re-attaches an enabled document's vectors to the
// retrievable set and lowers the document's indexing barrier.
func HandleAddDocumentToIndex(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DocumentIndexPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode add-to-index payload: %v: %w", err, asynq.SkipRetry)
		}
		return setDocumentIndexEnabled(ctx, deps, p.DocumentID, true)
	}
}

// HandleRemoveDocumentFromIndex detaches a document's vectors from the
// retrievable set.
func HandleRemoveDocumentFromIndex(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DocumentIndexPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode remove-from-index payload: %v: %w", err, asynq.SkipRetry)
		}
		return setDocumentIndexEnabled(ctx, deps, p.DocumentID, false)
	}
}

func setDocumentIndexEnabled(ctx context.Context, deps Deps, documentID string, enabled bool) error {
	logger := logrus.WithFields(logrus.Fields{
		"document_id": documentID,
		"enabled":     enabled,
	})
	defer func() {
		if err := deps.Redis.Del(ctx, fmt.Sprintf("document_%s_indexing", documentID)); err != nil {
			logger.WithError(err).Error("clear indexing flag failed")
		}
	}()

	document, err := deps.Documents.GetDocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("document not found, skipping index maintenance")
			return nil
		}
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if enabled && (!document.Enabled || document.Archived) {
		logger.Info("document no longer eligible for the index, skipping")
		return nil
	}
	if document.IndexingStatus != models.IndexingStatusCompleted {
		logger.WithField("status", document.IndexingStatus).Info("document not fully indexed, skipping")
		return nil
	}

	if err := deps.Vectors.SetDocumentVectorsEnabled(ctx, document.DatasetID, document.ID, enabled); err != nil {
		return fmt.Errorf("set vectors enabled for document %s: %w", documentID, err)
	}
	logger.Info("updated document index membership")
	return nil
}

// HandleDealDatasetVectorIndex applies a dataset-scope vector index change
// after an indexing-technique or embedding-model switch.
func HandleDealDatasetVectorIndex(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.DealDatasetVectorIndexPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode deal-vector payload: %v: %w", err, asynq.SkipRetry)
		}
		logger := logrus.WithFields(logrus.Fields{
			"dataset_id": p.DatasetID,
			"action":     p.Action,
		})

		dataset, err := deps.Datasets.GetDataset(ctx, p.DatasetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Info("dataset not found, skipping vector maintenance")
				return nil
			}
			return fmt.Errorf("load dataset %s: %w", p.DatasetID, err)
		}

		switch p.Action {
		case services.VectorIndexActionRemove:
			if err := deps.Vectors.RemoveDatasetVectors(ctx, dataset.ID); err != nil {
				return err
			}
		case services.VectorIndexActionAdd, services.VectorIndexActionUpdate:
			if dataset.IndexingTechnique != models.IndexingTechniqueHighQuality {
				logger.Info("dataset not high_quality, skipping rebuild")
				return nil
			}
			if err := rebuildDatasetVectors(ctx, deps, dataset.ID); err != nil {
				return err
			}
		default:
			logger.Warn("unknown vector index action, skipping")
			return nil
		}
		logger.Info("dataset vector index maintenance done")
		return nil
	}
}

// HandleRegenerateSummaryIndex re-embeds a dataset's stored chunks after its
// embedding model changed.
func HandleRegenerateSummaryIndex(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.RegenerateSummaryIndexPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode summary regeneration payload: %v: %w", err, asynq.SkipRetry)
		}
		logger := logrus.WithFields(logrus.Fields{
			"dataset_id": p.DatasetID,
			"reason":     p.Reason,
		})
		if !p.VectorsOnly {
			logger.Info("full summary regeneration requested, rebuilding vectors only")
		}
		if err := rebuildDatasetVectors(ctx, deps, p.DatasetID); err != nil {
			return err
		}
		logger.Info("summary vectors regenerated")
		return nil
	}
}

// rebuildDatasetVectors re-embeds every stored chunk with the dataset's
// current model and swaps the stored vectors in.
func rebuildDatasetVectors(ctx context.Context, deps Deps, datasetID string) error {
	chunks, err := deps.Vectors.ListDatasetChunks(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("list chunks for dataset %s: %w", datasetID, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.ChunkText
	}
	vectors, err := deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks for dataset %s: %w", datasetID, err)
	}

	byDocument := map[string][]store.VectorChunk{}
	order := []string{}
	for i, chunk := range chunks {
		if _, ok := byDocument[chunk.DocumentID]; !ok {
			order = append(order, chunk.DocumentID)
		}
		byDocument[chunk.DocumentID] = append(byDocument[chunk.DocumentID], store.VectorChunk{
			ChunkText: chunk.ChunkText,
			Vector:    vectors[i],
		})
	}

	if err := deps.Vectors.RemoveDatasetVectors(ctx, datasetID); err != nil {
		return fmt.Errorf("clear old vectors for dataset %s: %w", datasetID, err)
	}
	for _, documentID := range order {
		if err := deps.Vectors.AddDocumentVectors(ctx, datasetID, documentID, byDocument[documentID]); err != nil {
			return fmt.Errorf("store rebuilt vectors for document %s: %w", documentID, err)
		}
	}
	return nil
}

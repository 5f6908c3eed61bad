package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"corpus/internal/models"
	"corpus/internal/redisx"
	"corpus/internal/store"
)

var _ IndexingRunner = (*VectorIndexingRunner)(nil)

// VectorIndexingRunner is the built-in IndexingRunner: it walks a batch
// document by document, re-embeds the document's stored chunks and moves the
// status through indexing to completed. A pause flag set by the lifecycle
// service is observed at the checkpoint before each document.
type VectorIndexingRunner struct {
	documents store.DocumentStore
	vectors   store.VectorStore
	embedder  Embedder
	redis     redisx.Client
	now       func() time.Time
	log       *logrus.Entry
}

func NewVectorIndexingRunner(
	documents store.DocumentStore,
	vectors store.VectorStore,
	embedder Embedder,
	redis redisx.Client,
) *VectorIndexingRunner {
	return &VectorIndexingRunner{
		documents: documents,
		vectors:   vectors,
		embedder:  embedder,
		redis:     redis,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logrus.WithField("component", "indexing_runner"),
	}
}

func (r *VectorIndexingRunner) Run(ctx context.Context, documents []*models.Document) error {
	for _, document := range documents {
		if err := r.checkpointPause(ctx, document); err != nil {
			return err
		}

		now := r.now()
		document.IndexingStatus = models.IndexingStatusIndexing
		document.UpdatedAt = now
		if err := r.documents.UpdateDocument(ctx, document); err != nil {
			return fmt.Errorf("mark document %s indexing: %w", document.ID, err)
		}

		if err := r.indexDocument(ctx, document); err != nil {
			return fmt.Errorf("index document %s: %w", document.ID, err)
		}

		if err := r.checkpointPause(ctx, document); err != nil {
			return err
		}

		completedAt := r.now()
		document.IndexingStatus = models.IndexingStatusCompleted
		document.CompletedAt = &completedAt
		document.UpdatedAt = completedAt
		if err := r.documents.UpdateDocument(ctx, document); err != nil {
			return fmt.Errorf("mark document %s completed: %w", document.ID, err)
		}
		r.log.WithFields(logrus.Fields{
			"dataset_id":  document.DatasetID,
			"document_id": document.ID,
		}).Info("document indexing completed")
	}
	return nil
}

// indexDocument re-embeds the chunks already stored for the document. A
// document with no stored chunks passes straight through.
func (r *VectorIndexingRunner) indexDocument(ctx context.Context, document *models.Document) error {
	stored, err := r.vectors.ListDatasetChunks(ctx, document.DatasetID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	texts := make([]string, 0, len(stored))
	for _, chunk := range stored {
		if chunk.DocumentID == document.ID {
			texts = append(texts, chunk.ChunkText)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	chunks := make([]store.VectorChunk, len(texts))
	for i, text := range texts {
		chunks[i] = store.VectorChunk{ChunkText: text, Vector: vectors[i]}
	}

	if err := r.vectors.RemoveDocumentVectors(ctx, document.DatasetID, document.ID); err != nil {
		return fmt.Errorf("remove stale vectors: %w", err)
	}
	if err := r.vectors.AddDocumentVectors(ctx, document.DatasetID, document.ID, chunks); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	return nil
}

func (r *VectorIndexingRunner) checkpointPause(ctx context.Context, document *models.Document) error {
	_, paused, err := r.redis.Get(ctx, pausedCacheKey(document.ID))
	if err != nil {
		return fmt.Errorf("read pause flag for document %s: %w", document.ID, err)
	}
	if paused {
		return &models.DocumentIsPausedError{DocumentID: document.ID}
	}
	return nil
}

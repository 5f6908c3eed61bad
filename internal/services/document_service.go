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

// Batch status actions accepted by BatchUpdateDocumentStatus.
const (
	DocumentActionEnable    = "enable"
	DocumentActionDisable   = "disable"
	DocumentActionArchive   = "archive"
	DocumentActionUnArchive = "un_archive"
)

func pausedCacheKey(documentID string) string {
	return fmt.Sprintf("document_%s_is_paused", documentID)
}

func retriedCacheKey(documentID string) string {
	return fmt.Sprintf("document_%s_is_retried", documentID)
}

func indexingCacheKey(documentID string) string {
	return fmt.Sprintf("document_%s_indexing", documentID)
}

// DocumentService drives the document lifecycle: pause/resume, retry,
// enable/disable/archive, and rename.
type DocumentService struct {
	datasets    store.DatasetStore
	documents   store.DocumentStore
	uploadFiles store.UploadFileStore
	jobs        store.JobClient
	redis       redisx.Client
	flagTTL     time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

func NewDocumentService(
	datasets store.DatasetStore,
	documents store.DocumentStore,
	uploadFiles store.UploadFileStore,
	jobs store.JobClient,
	redis redisx.Client,
	flagTTL time.Duration,
) *DocumentService {
	return &DocumentService{
		datasets:    datasets,
		documents:   documents,
		uploadFiles: uploadFiles,
		jobs:        jobs,
		redis:       redis,
		flagTTL:     flagTTL,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logrus.WithField("component", "document_service"),
	}
}

// PauseDocument interrupts an in-flight document. Only documents still in a
// processing status can be paused; the pause flag is observed cooperatively
// by the indexing runner at its next checkpoint.
func (s *DocumentService) PauseDocument(ctx context.Context, document *models.Document, user *models.Account) error {
	switch document.IndexingStatus {
	case models.IndexingStatusWaiting, models.IndexingStatusParsing, models.IndexingStatusIndexing:
	default:
		return models.NewDocumentIndexingError("Document is not in indexing, can not pause")
	}

	now := s.now()
	document.IsPaused = true
	document.PausedAt = &now
	if user != nil {
		pausedBy := user.ID
		document.PausedBy = &pausedBy
	}
	if err := s.documents.UpdateDocument(ctx, document); err != nil {
		return fmt.Errorf("persist pause for document %s: %w", document.ID, err)
	}

	if _, err := s.redis.SetNX(ctx, pausedCacheKey(document.ID), "True", 0); err != nil {
		return fmt.Errorf("set pause flag for document %s: %w", document.ID, err)
	}
	return nil
}

// RecoverDocument resumes a paused document and schedules the recover task
// to pick up indexing where it stopped.
func (s *DocumentService) RecoverDocument(ctx context.Context, document *models.Document) error {
	if !document.IsPaused {
		return models.NewDocumentIndexingError("Document is not paused, can not recover")
	}

	document.IsPaused = false
	document.PausedBy = nil
	document.PausedAt = nil
	if err := s.documents.UpdateDocument(ctx, document); err != nil {
		return fmt.Errorf("persist recover for document %s: %w", document.ID, err)
	}

	if err := s.redis.Del(ctx, pausedCacheKey(document.ID)); err != nil {
		return fmt.Errorf("clear pause flag for document %s: %w", document.ID, err)
	}
	return s.jobs.EnqueueRecoverDocumentIndexing(ctx, document.DatasetID, document.ID)
}

// RetryDocuments resets errored documents back to waiting and schedules one
// retry task covering the whole batch. A document already flagged as retried
// aborts the call before any state is touched.
func (s *DocumentService) RetryDocuments(ctx context.Context, datasetID string, documents []*models.Document, user *models.Account) error {
	if user == nil || user.ID == "" {
		return models.ErrValidation
	}

	now := s.now()
	retried := make([]string, 0, len(documents))
	for _, document := range documents {
		if _, ok, err := s.redis.Get(ctx, retriedCacheKey(document.ID)); err != nil {
			return fmt.Errorf("read retry flag for document %s: %w", document.ID, err)
		} else if ok {
			return models.NewDocumentIndexingError("Document is being retried, please try again later")
		}
		if err := s.redis.SetEx(ctx, retriedCacheKey(document.ID), "1", s.flagTTL); err != nil {
			return fmt.Errorf("set retry flag for document %s: %w", document.ID, err)
		}

		document.IndexingStatus = models.IndexingStatusWaiting
		document.ProcessingStartedAt = nil
		document.CompletedAt = nil
		document.Error = nil
		document.StoppedAt = nil
		document.UpdatedAt = now
		retried = append(retried, document.ID)
	}
	if len(retried) == 0 {
		return nil
	}

	if err := s.documents.UpdateDocuments(ctx, documents); err != nil {
		return fmt.Errorf("reset documents for retry: %w", err)
	}
	return s.jobs.EnqueueRetryDocumentIndexing(ctx, datasetID, retried, user.ID)
}

// BatchUpdateDocumentStatus applies one lifecycle action to a batch of
// documents atomically. If any document in the batch is actively being
// indexed the whole batch is rejected and nothing is persisted.
func (s *DocumentService) BatchUpdateDocumentStatus(ctx context.Context, dataset *models.Dataset, documentIDs []string, action string, user *models.Account) error {
	switch action {
	case DocumentActionEnable, DocumentActionDisable, DocumentActionArchive, DocumentActionUnArchive:
	default:
		return fmt.Errorf("%w: invalid document action %q", models.ErrValidation, action)
	}
	if len(documentIDs) == 0 {
		return nil
	}

	documents, err := s.documents.GetDocumentsByIDs(ctx, dataset.ID, documentIDs)
	if err != nil {
		return fmt.Errorf("load documents for batch %s: %w", action, err)
	}

	for _, document := range documents {
		if _, ok, err := s.redis.Get(ctx, indexingCacheKey(document.ID)); err != nil {
			return fmt.Errorf("read indexing flag for document %s: %w", document.ID, err)
		} else if ok {
			return models.NewDocumentIndexingError("Document:%s is being indexed, please try again later", document.Name)
		}
	}

	now := s.now()
	userID := ""
	if user != nil {
		userID = user.ID
	}

	changed := make([]*models.Document, 0, len(documents))
	addToIndex := make([]string, 0, len(documents))
	removeFromIndex := make([]string, 0, len(documents))

	for _, document := range documents {
		switch action {
		case DocumentActionEnable:
			if document.Enabled {
				continue
			}
			document.Enabled = true
			document.DisabledAt = nil
			document.DisabledBy = nil
			addToIndex = append(addToIndex, document.ID)
		case DocumentActionDisable:
			if !document.Enabled {
				continue
			}
			document.Enabled = false
			document.DisabledAt = &now
			if userID != "" {
				disabledBy := userID
				document.DisabledBy = &disabledBy
			}
			removeFromIndex = append(removeFromIndex, document.ID)
		case DocumentActionArchive:
			if document.Archived {
				continue
			}
			document.Archived = true
			document.ArchivedAt = &now
			if userID != "" {
				archivedBy := userID
				document.ArchivedBy = &archivedBy
			}
			if document.Enabled {
				removeFromIndex = append(removeFromIndex, document.ID)
			}
		case DocumentActionUnArchive:
			if !document.Archived {
				continue
			}
			document.Archived = false
			document.ArchivedAt = nil
			document.ArchivedBy = nil
			if document.Enabled {
				addToIndex = append(addToIndex, document.ID)
			}
		}
		document.UpdatedAt = now
		changed = append(changed, document)
	}
	if len(changed) == 0 {
		return nil
	}

	if err := s.documents.UpdateDocuments(ctx, changed); err != nil {
		return fmt.Errorf("persist batch %s: %w", action, err)
	}

	// Index maintenance runs after the commit so a task can never observe
	// the pre-update rows. The indexing flag blocks further status changes
	// until the worker finishes and clears it.
	for _, id := range addToIndex {
		if err := s.redis.SetEx(ctx, indexingCacheKey(id), "1", s.flagTTL); err != nil {
			return fmt.Errorf("set indexing flag for document %s: %w", id, err)
		}
		if err := s.jobs.EnqueueAddDocumentToIndex(ctx, id); err != nil {
			s.log.WithError(err).WithField("document_id", id).Error("enqueue add-to-index failed")
		}
	}
	for _, id := range removeFromIndex {
		if err := s.redis.SetEx(ctx, indexingCacheKey(id), "1", s.flagTTL); err != nil {
			return fmt.Errorf("set indexing flag for document %s: %w", id, err)
		}
		if err := s.jobs.EnqueueRemoveDocumentFromIndex(ctx, id); err != nil {
			s.log.WithError(err).WithField("document_id", id).Error("enqueue remove-from-index failed")
		}
	}
	return nil
}

// RenameDocument renames a document and, for file-upload documents, the
// backing upload file. When the dataset exposes built-in metadata fields the
// document_name metadata entry is kept in sync.
func (s *DocumentService) RenameDocument(ctx context.Context, datasetID, documentID, name string, user *models.Account) (*models.Document, error) {
	dataset, err := s.datasets.GetDataset(ctx, datasetID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: Dataset not found", models.ErrValidation)
		}
		return nil, fmt.Errorf("load dataset %s: %w", datasetID, err)
	}

	document, err := s.documents.GetDocument(ctx, datasetID, documentID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: Document not found", models.ErrValidation)
		}
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	if user == nil || user.CurrentTenantID != document.TenantID {
		return nil, models.NewNoPermissionError("No permission.")
	}

	document.Name = name
	if dataset.BuiltInFieldEnabled {
		meta := document.DocMetadataMap()
		meta["document_name"] = name
		raw, err := jsonMarshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode document metadata: %w", err)
		}
		document.DocMetadata = raw
	}
	document.UpdatedAt = s.now()

	uploadFileID := ""
	if document.DataSourceType == "upload_file" {
		if id, ok := document.DataSourceInfoMap()["upload_file_id"].(string); ok {
			uploadFileID = id
		}
	}

	if err := s.documents.RenameDocument(ctx, document, uploadFileID); err != nil {
		return nil, fmt.Errorf("persist rename for document %s: %w", documentID, err)
	}
	return document, nil
}

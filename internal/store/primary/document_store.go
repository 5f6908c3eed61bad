package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"corpus/internal/models"
	"corpus/internal/store"
)

const documentColumns = `id, tenant_id, dataset_id, position, batch, name, data_source_type,
	data_source_info, doc_form, doc_metadata, created_from, created_by, indexing_status,
	processing_started_at, completed_at, error, stopped_at, is_paused, paused_by, paused_at,
	enabled, disabled_at, disabled_by, archived, archived_at, archived_by, created_at, updated_at`

func scanDocument(row pgx.Row, dest *models.Document) error {
	return row.Scan(
		&dest.ID,
		&dest.TenantID,
		&dest.DatasetID,
		&dest.Position,
		&dest.Batch,
		&dest.Name,
		&dest.DataSourceType,
		&dest.DataSourceInfo,
		&dest.DocForm,
		&dest.DocMetadata,
		&dest.CreatedFrom,
		&dest.CreatedBy,
		&dest.IndexingStatus,
		&dest.ProcessingStartedAt,
		&dest.CompletedAt,
		&dest.Error,
		&dest.StoppedAt,
		&dest.IsPaused,
		&dest.PausedBy,
		&dest.PausedAt,
		&dest.Enabled,
		&dest.DisabledAt,
		&dest.DisabledBy,
		&dest.Archived,
		&dest.ArchivedAt,
		&dest.ArchivedBy,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
}

func (s *StoreImpl) GetDocument(ctx context.Context, datasetID, documentID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND dataset_id = $2`
	document := &models.Document{}
	err := scanDocument(s.db.QueryRow(ctx, query, documentID, datasetID), document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}
	return document, nil
}

func (s *StoreImpl) GetDocumentByID(ctx context.Context, documentID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	document := &models.Document{}
	err := scanDocument(s.db.QueryRow(ctx, query, documentID), document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}
	return document, nil
}

// GetDocumentsByIDs returns the documents that exist in the dataset; ids
// without a row are dropped rather than reported.
func (s *StoreImpl) GetDocumentsByIDs(ctx context.Context, datasetID string, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE dataset_id = $1 AND id = ANY($2) ORDER BY position ASC`

	rows, err := s.db.Query(ctx, query, datasetID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents for dataset %s: %w", datasetID, err)
	}
	defer rows.Close()

	var documents []*models.Document
	for rows.Next() {
		document := &models.Document{}
		if err := scanDocument(rows, document); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		documents = append(documents, document)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return documents, nil
}

const updateDocumentQuery = `
	UPDATE documents SET
		name = $2, data_source_info = $3, doc_metadata = $4, indexing_status = $5,
		processing_started_at = $6, completed_at = $7, error = $8, stopped_at = $9,
		is_paused = $10, paused_by = $11, paused_at = $12,
		enabled = $13, disabled_at = $14, disabled_by = $15,
		archived = $16, archived_at = $17, archived_by = $18,
		updated_at = NOW()
	WHERE id = $1`

func documentUpdateArgs(d *models.Document) []any {
	return []any{
		d.ID, d.Name, d.DataSourceInfo, d.DocMetadata, d.IndexingStatus,
		d.ProcessingStartedAt, d.CompletedAt, d.Error, d.StoppedAt,
		d.IsPaused, d.PausedBy, d.PausedAt,
		d.Enabled, d.DisabledAt, d.DisabledBy,
		d.Archived, d.ArchivedAt, d.ArchivedBy,
	}
}

func (s *StoreImpl) UpdateDocument(ctx context.Context, document *models.Document) error {
	tag, err := s.db.Exec(ctx, updateDocumentQuery, documentUpdateArgs(document)...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", document.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateDocuments persists every document in one transaction.
func (s *StoreImpl) UpdateDocuments(ctx context.Context, documents []*models.Document) error {
	if len(documents) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, document := range documents {
		if _, err := tx.Exec(ctx, updateDocumentQuery, documentUpdateArgs(document)...); err != nil {
			return fmt.Errorf("failed to update document %s: %w", document.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document updates: %w", err)
	}
	return nil
}

// RenameDocument persists the document's current state and, when a backing
// upload file is named, its rename, atomically.
func (s *StoreImpl) RenameDocument(ctx context.Context, document *models.Document, uploadFileID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, updateDocumentQuery, documentUpdateArgs(document)...)
	if err != nil {
		return fmt.Errorf("failed to rename document %s: %w", document.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if uploadFileID != "" {
		query := `UPDATE upload_files SET name = $3 WHERE id = $1 AND tenant_id = $2`
		if _, err := tx.Exec(ctx, query, uploadFileID, document.TenantID, document.Name); err != nil {
			return fmt.Errorf("failed to rename upload file %s: %w", uploadFileID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document rename: %w", err)
	}
	return nil
}

// Ensure StoreImpl satisfies the DocumentStore interface
var _ store.DocumentStore = (*StoreImpl)(nil)

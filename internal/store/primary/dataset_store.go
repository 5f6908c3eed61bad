package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"corpus/internal/models"
	"corpus/internal/store"
)

const datasetColumns = `id, tenant_id, name, description, provider, permission, data_source_type,
	indexing_technique, retrieval_model, embedding_model, embedding_model_provider,
	collection_binding_id, built_in_field_enabled, retrieval_config, created_by, created_at, updated_at`

func scanDataset(row pgx.Row, dest *models.Dataset) error {
	return row.Scan(
		&dest.ID,
		&dest.TenantID,
		&dest.Name,
		&dest.Description,
		&dest.Provider,
		&dest.Permission,
		&dest.DataSourceType,
		&dest.IndexingTechnique,
		&dest.RetrievalModel,
		&dest.EmbeddingModel,
		&dest.EmbeddingModelProvider,
		&dest.CollectionBindingID,
		&dest.BuiltInFieldEnabled,
		&dest.RetrievalConfig,
		&dest.CreatedBy,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
}

func (s *StoreImpl) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`
	dataset := &models.Dataset{}
	err := scanDataset(s.db.QueryRow(ctx, query, id), dataset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset %s: %w", id, err)
	}
	return dataset, nil
}

func (s *StoreImpl) UpdateDataset(ctx context.Context, dataset *models.Dataset) error {
	query := `
		UPDATE datasets SET
			name = $2, description = $3, permission = $4, indexing_technique = $5,
			retrieval_model = $6, embedding_model = $7, embedding_model_provider = $8,
			collection_binding_id = $9, retrieval_config = $10, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		dataset.ID, dataset.Name, dataset.Description, dataset.Permission,
		dataset.IndexingTechnique, dataset.RetrievalModel, dataset.EmbeddingModel,
		dataset.EmbeddingModelProvider, dataset.CollectionBindingID, dataset.RetrievalConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset %s: %w", dataset.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Ensure StoreImpl satisfies the DatasetStore interface
var _ store.DatasetStore = (*StoreImpl)(nil)

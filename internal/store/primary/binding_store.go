package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"corpus/internal/models"
	"corpus/internal/store"
)

// --- External Knowledge Bindings ---

func (s *StoreImpl) GetExternalKnowledgeBinding(ctx context.Context, tenantID, datasetID string) (*models.ExternalKnowledgeBinding, error) {
	query := `SELECT id, tenant_id, dataset_id, external_knowledge_id, external_knowledge_api_id,
		created_by, created_at
		FROM external_knowledge_bindings WHERE dataset_id = $1 AND tenant_id = $2`
	binding := &models.ExternalKnowledgeBinding{}
	err := s.db.QueryRow(ctx, query, datasetID, tenantID).Scan(
		&binding.ID, &binding.TenantID, &binding.DatasetID,
		&binding.ExternalKnowledgeID, &binding.ExternalKnowledgeAPIID,
		&binding.CreatedBy, &binding.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get external knowledge binding for dataset %s: %w", datasetID, err)
	}
	return binding, nil
}

func (s *StoreImpl) UpdateExternalKnowledgeBinding(ctx context.Context, binding *models.ExternalKnowledgeBinding) error {
	query := `UPDATE external_knowledge_bindings
		SET external_knowledge_id = $2, external_knowledge_api_id = $3
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, binding.ID, binding.ExternalKnowledgeID, binding.ExternalKnowledgeAPIID)
	if err != nil {
		return fmt.Errorf("failed to update external knowledge binding %s: %w", binding.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Collection Bindings ---

// GetOrCreateCollectionBinding resolves the collection shared by all datasets
// embedding with the same (provider, model) pair, creating it on first use.
func (s *StoreImpl) GetOrCreateCollectionBinding(ctx context.Context, providerName, modelName string) (*models.CollectionBinding, error) {
	query := `SELECT id, provider_name, model_name, collection_name, type, created_at
		FROM dataset_collection_bindings
		WHERE provider_name = $1 AND model_name = $2 AND type = 'dataset'`
	binding := &models.CollectionBinding{}
	err := s.db.QueryRow(ctx, query, providerName, modelName).Scan(
		&binding.ID, &binding.ProviderName, &binding.ModelName,
		&binding.CollectionName, &binding.Type, &binding.CreatedAt,
	)
	if err == nil {
		return binding, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get collection binding for %s/%s: %w", providerName, modelName, err)
	}

	id := uuid.NewString()
	collectionName := fmt.Sprintf("Vector_index_%s_Node", uuid.NewString())
	insert := `INSERT INTO dataset_collection_bindings
		(id, provider_name, model_name, collection_name, type, created_at)
		VALUES ($1, $2, $3, $4, 'dataset', NOW())
		RETURNING id, provider_name, model_name, collection_name, type, created_at`
	err = s.db.QueryRow(ctx, insert, id, providerName, modelName, collectionName).Scan(
		&binding.ID, &binding.ProviderName, &binding.ModelName,
		&binding.CollectionName, &binding.Type, &binding.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("collection binding for %s/%s already exists: %w", providerName, modelName, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create collection binding for %s/%s: %w", providerName, modelName, err)
	}
	return binding, nil
}

// Ensure StoreImpl satisfies the binding store interfaces
var (
	_ store.ExternalKnowledgeBindingStore = (*StoreImpl)(nil)
	_ store.CollectionBindingStore        = (*StoreImpl)(nil)
)

package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"corpus/internal/models"
	"corpus/internal/store"
)

// Vector index actions dispatched when a dataset's embedding setup changes.
const (
	VectorIndexActionAdd    = "add"
	VectorIndexActionUpdate = "update"
	VectorIndexActionRemove = "remove"
)

// UpdateDatasetParams carries a partial dataset update. Nil pointers mean
// "leave unchanged", except Description which applies whenever SetDescription
// is true so callers can clear it explicitly.
type UpdateDatasetParams struct {
	Name                   *string
	Description            *string
	SetDescription         bool
	Permission             *string
	IndexingTechnique      *string
	RetrievalModel         *string
	ExternalRetrievalModel *string
	EmbeddingModel         *string
	EmbeddingModelProvider *string
	ExternalKnowledgeID    *string
	ExternalKnowledgeAPIID *string
}

// DatasetService handles dataset configuration updates, including embedding
// model transitions and the vector index maintenance they trigger.
type DatasetService struct {
	datasets   store.DatasetStore
	bindings   store.ExternalKnowledgeBindingStore
	collection store.CollectionBindingStore
	models     ModelManager
	jobs       store.JobClient
	log        *logrus.Entry
}

func NewDatasetService(
	datasets store.DatasetStore,
	bindings store.ExternalKnowledgeBindingStore,
	collection store.CollectionBindingStore,
	modelManager ModelManager,
	jobs store.JobClient,
) *DatasetService {
	return &DatasetService{
		datasets:   datasets,
		bindings:   bindings,
		collection: collection,
		models:     modelManager,
		jobs:       jobs,
		log:        logrus.WithField("component", "dataset_service"),
	}
}

// CheckDatasetPermission verifies the acting account may modify the dataset.
func CheckDatasetPermission(dataset *models.Dataset, user *models.Account) error {
	if user == nil || user.CurrentTenantID != dataset.TenantID {
		return models.NewNoPermissionError("You do not have permission to access this dataset.")
	}
	if !user.IsDatasetEditor() {
		return models.NewNoPermissionError("You do not have permission to access this dataset.")
	}
	return nil
}

// UpdateDataset applies a partial update. External-provider datasets update
// their knowledge binding; vendor datasets may additionally switch indexing
// technique, which clears or provisions the embedding configuration and
// schedules the matching vector index maintenance.
func (s *DatasetService) UpdateDataset(ctx context.Context, datasetID string, params UpdateDatasetParams, user *models.Account) (*models.Dataset, error) {
	dataset, err := s.datasets.GetDataset(ctx, datasetID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: Dataset not found", models.ErrValidation)
		}
		return nil, fmt.Errorf("load dataset %s: %w", datasetID, err)
	}
	if err := CheckDatasetPermission(dataset, user); err != nil {
		return nil, err
	}

	if dataset.Provider == models.DatasetProviderExternal {
		return s.updateExternalDataset(ctx, dataset, params)
	}
	return s.updateVendorDataset(ctx, dataset, params)
}

func (s *DatasetService) updateExternalDataset(ctx context.Context, dataset *models.Dataset, params UpdateDatasetParams) (*models.Dataset, error) {
	if params.ExternalKnowledgeID == nil || *params.ExternalKnowledgeID == "" {
		return nil, fmt.Errorf("%w: External knowledge id is required", models.ErrValidation)
	}
	if params.ExternalKnowledgeAPIID == nil || *params.ExternalKnowledgeAPIID == "" {
		return nil, fmt.Errorf("%w: External knowledge api id is required", models.ErrValidation)
	}

	if params.Name != nil {
		dataset.Name = *params.Name
	}
	if params.SetDescription {
		dataset.Description = params.Description
	}
	if params.Permission != nil {
		dataset.Permission = *params.Permission
	}
	if params.ExternalRetrievalModel != nil {
		dataset.RetrievalModel = params.ExternalRetrievalModel
	}

	binding, err := s.bindings.GetExternalKnowledgeBinding(ctx, dataset.TenantID, dataset.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: External knowledge binding not found", models.ErrValidation)
		}
		return nil, fmt.Errorf("load external knowledge binding for dataset %s: %w", dataset.ID, err)
	}
	if binding.ExternalKnowledgeID != *params.ExternalKnowledgeID ||
		binding.ExternalKnowledgeAPIID != *params.ExternalKnowledgeAPIID {
		binding.ExternalKnowledgeID = *params.ExternalKnowledgeID
		binding.ExternalKnowledgeAPIID = *params.ExternalKnowledgeAPIID
		if err := s.bindings.UpdateExternalKnowledgeBinding(ctx, binding); err != nil {
			return nil, fmt.Errorf("update external knowledge binding for dataset %s: %w", dataset.ID, err)
		}
	}

	if err := s.datasets.UpdateDataset(ctx, dataset); err != nil {
		return nil, fmt.Errorf("update dataset %s: %w", dataset.ID, err)
	}
	return dataset, nil
}

func (s *DatasetService) updateVendorDataset(ctx context.Context, dataset *models.Dataset, params UpdateDatasetParams) (*models.Dataset, error) {
	if params.Name != nil {
		dataset.Name = *params.Name
	}
	if params.SetDescription {
		dataset.Description = params.Description
	}
	if params.Permission != nil {
		dataset.Permission = *params.Permission
	}
	if params.RetrievalModel != nil {
		dataset.RetrievalModel = params.RetrievalModel
	}

	action := ""
	regenerateSummary := false
	if params.IndexingTechnique != nil && *params.IndexingTechnique != dataset.IndexingTechnique {
		switch *params.IndexingTechnique {
		case models.IndexingTechniqueEconomy:
			action = VectorIndexActionRemove
			dataset.IndexingTechnique = models.IndexingTechniqueEconomy
			dataset.EmbeddingModel = nil
			dataset.EmbeddingModelProvider = nil
			dataset.CollectionBindingID = nil
		case models.IndexingTechniqueHighQuality:
			action = VectorIndexActionAdd
			if err := s.applyEmbeddingModel(ctx, dataset, params); err != nil {
				return nil, err
			}
			dataset.IndexingTechnique = models.IndexingTechniqueHighQuality
		default:
			return nil, fmt.Errorf("%w: invalid indexing technique %q", models.ErrValidation, *params.IndexingTechnique)
		}
	} else if dataset.IndexingTechnique == models.IndexingTechniqueHighQuality &&
		params.EmbeddingModel != nil && params.EmbeddingModelProvider != nil &&
		s.embeddingModelChanged(dataset, params) {
		// Staying high_quality on a different model: vectors are rebuilt in
		// place and summaries re-embedded against the new model.
		action = VectorIndexActionUpdate
		regenerateSummary = true
		if err := s.applyEmbeddingModel(ctx, dataset, params); err != nil {
			return nil, err
		}
	}

	if err := s.datasets.UpdateDataset(ctx, dataset); err != nil {
		return nil, fmt.Errorf("update dataset %s: %w", dataset.ID, err)
	}

	if action != "" {
		if err := s.jobs.EnqueueDealDatasetVectorIndex(ctx, dataset.ID, action); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"dataset_id": dataset.ID,
				"action":     action,
			}).Error("enqueue vector index maintenance failed")
		}
	}
	if regenerateSummary {
		if err := s.jobs.EnqueueRegenerateSummaryIndex(ctx, dataset.ID, "embedding_model_changed", true); err != nil {
			s.log.WithError(err).WithField("dataset_id", dataset.ID).Error("enqueue summary regeneration failed")
		}
	}
	return dataset, nil
}

func (s *DatasetService) embeddingModelChanged(dataset *models.Dataset, params UpdateDatasetParams) bool {
	current := ""
	if dataset.EmbeddingModelProvider != nil && dataset.EmbeddingModel != nil {
		current = *dataset.EmbeddingModelProvider + "/" + *dataset.EmbeddingModel
	}
	return current != *params.EmbeddingModelProvider+"/"+*params.EmbeddingModel
}

// applyEmbeddingModel resolves the requested embedding model and binds the
// dataset to the collection shared by that (provider, model) pair. Resolution
// failure aborts the whole update.
func (s *DatasetService) applyEmbeddingModel(ctx context.Context, dataset *models.Dataset, params UpdateDatasetParams) error {
	if params.EmbeddingModel == nil || params.EmbeddingModelProvider == nil {
		return fmt.Errorf("%w: embedding model and provider are required for high_quality indexing", models.ErrValidation)
	}

	instance, err := s.models.GetModelInstance(ctx, dataset.TenantID, *params.EmbeddingModelProvider, ModelTypeTextEmbedding, *params.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("resolve embedding model: %w", err)
	}

	binding, err := s.collection.GetOrCreateCollectionBinding(ctx, instance.Provider, instance.Model)
	if err != nil {
		return fmt.Errorf("resolve collection binding: %w", err)
	}

	provider := instance.Provider
	model := instance.Model
	bindingID := binding.ID
	dataset.EmbeddingModelProvider = &provider
	dataset.EmbeddingModel = &model
	dataset.CollectionBindingID = &bindingID
	return nil
}

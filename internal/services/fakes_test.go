package services

import (
	"context"
	"fmt"

	"corpus/internal/models"
	"corpus/internal/store"
)

type indexingCall struct {
	Queue       string
	TenantID    string
	DatasetID   string
	DocumentIDs []string
}

type retryCall struct {
	DatasetID   string
	DocumentIDs []string
	UserID      string
}

type vectorIndexCall struct {
	DatasetID string
	Action    string
}

type summaryCall struct {
	DatasetID   string
	Reason      string
	VectorsOnly bool
}

type fakeJobClient struct {
	indexing    []indexingCall
	recovers    []string
	retries     []retryCall
	addIndex    []string
	removeIndex []string
	dealVector  []vectorIndexCall
	summaries   []summaryCall
	err         error
}

func (f *fakeJobClient) EnqueueDocumentIndexing(_ context.Context, queue, tenantID, datasetID string, documentIDs []string) error {
	if f.err != nil {
		return f.err
	}
	f.indexing = append(f.indexing, indexingCall{Queue: queue, TenantID: tenantID, DatasetID: datasetID, DocumentIDs: documentIDs})
	return nil
}

func (f *fakeJobClient) EnqueueDocumentIndexingSync(_ context.Context, datasetID, documentID string) error {
	return f.err
}

func (f *fakeJobClient) EnqueueRecoverDocumentIndexing(_ context.Context, datasetID, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.recovers = append(f.recovers, datasetID+"/"+documentID)
	return nil
}

func (f *fakeJobClient) EnqueueRetryDocumentIndexing(_ context.Context, datasetID string, documentIDs []string, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.retries = append(f.retries, retryCall{DatasetID: datasetID, DocumentIDs: documentIDs, UserID: userID})
	return nil
}

func (f *fakeJobClient) EnqueueAddDocumentToIndex(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.addIndex = append(f.addIndex, documentID)
	return nil
}

func (f *fakeJobClient) EnqueueRemoveDocumentFromIndex(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.removeIndex = append(f.removeIndex, documentID)
	return nil
}

func (f *fakeJobClient) EnqueueDealDatasetVectorIndex(_ context.Context, datasetID, action string) error {
	if f.err != nil {
		return f.err
	}
	f.dealVector = append(f.dealVector, vectorIndexCall{DatasetID: datasetID, Action: action})
	return nil
}

func (f *fakeJobClient) EnqueueRegenerateSummaryIndex(_ context.Context, datasetID, reason string, vectorsOnly bool) error {
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, summaryCall{DatasetID: datasetID, Reason: reason, VectorsOnly: vectorsOnly})
	return nil
}

func (f *fakeJobClient) Close() error { return nil }

type fakeDatasetStore struct {
	datasets map[string]*models.Dataset
	updated  []*models.Dataset
	err      error
}

func newFakeDatasetStore(datasets ...*models.Dataset) *fakeDatasetStore {
	s := &fakeDatasetStore{datasets: map[string]*models.Dataset{}}
	for _, d := range datasets {
		s.datasets[d.ID] = d
	}
	return s
}

func (f *fakeDatasetStore) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDatasetStore) UpdateDataset(_ context.Context, dataset *models.Dataset) error {
	if f.err != nil {
		return f.err
	}
	f.datasets[dataset.ID] = dataset
	f.updated = append(f.updated, dataset)
	return nil
}

type fakeDocumentStore struct {
	documents map[string]*models.Document
	batches   [][]*models.Document
	renames   []string
	err       error
	updateErr error
}

func newFakeDocumentStore(documents ...*models.Document) *fakeDocumentStore {
	s := &fakeDocumentStore{documents: map[string]*models.Document{}}
	for _, d := range documents {
		s.documents[d.ID] = d
	}
	return s
}

func (f *fakeDocumentStore) GetDocument(_ context.Context, datasetID, documentID string) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.documents[documentID]
	if !ok || d.DatasetID != datasetID {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDocumentStore) GetDocumentByID(_ context.Context, documentID string) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDocumentStore) GetDocumentsByIDs(_ context.Context, datasetID string, ids []string) ([]*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Document
	for _, id := range ids {
		if d, ok := f.documents[id]; ok && d.DatasetID == datasetID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) UpdateDocument(_ context.Context, document *models.Document) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.documents[document.ID] = document
	return nil
}

func (f *fakeDocumentStore) UpdateDocuments(_ context.Context, documents []*models.Document) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, d := range documents {
		f.documents[d.ID] = d
	}
	f.batches = append(f.batches, documents)
	return nil
}

func (f *fakeDocumentStore) RenameDocument(_ context.Context, document *models.Document, uploadFileID string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.documents[document.ID] = document
	f.renames = append(f.renames, document.ID+"/"+uploadFileID)
	return nil
}

type fakeUploadFileStore struct {
	files map[string]*models.UploadFile
}

func (f *fakeUploadFileStore) GetUploadFile(_ context.Context, tenantID, id string) (*models.UploadFile, error) {
	file, ok := f.files[id]
	if !ok || file.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return file, nil
}

func (f *fakeUploadFileStore) RenameUploadFile(_ context.Context, tenantID, id, name string) error {
	file, ok := f.files[id]
	if !ok || file.TenantID != tenantID {
		return store.ErrNotFound
	}
	file.Name = name
	return nil
}

type fakeBindingStore struct {
	bindings map[string]*models.ExternalKnowledgeBinding
	updated  []*models.ExternalKnowledgeBinding
}

func (f *fakeBindingStore) GetExternalKnowledgeBinding(_ context.Context, tenantID, datasetID string) (*models.ExternalKnowledgeBinding, error) {
	b, ok := f.bindings[datasetID]
	if !ok || b.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeBindingStore) UpdateExternalKnowledgeBinding(_ context.Context, binding *models.ExternalKnowledgeBinding) error {
	f.bindings[binding.DatasetID] = binding
	f.updated = append(f.updated, binding)
	return nil
}

type fakeCollectionStore struct {
	binding *models.CollectionBinding
	err     error
}

func (f *fakeCollectionStore) GetOrCreateCollectionBinding(_ context.Context, providerName, modelName string) (*models.CollectionBinding, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.binding != nil {
		return f.binding, nil
	}
	return &models.CollectionBinding{
		ID:             "binding-" + providerName + "-" + modelName,
		ProviderName:   providerName,
		ModelName:      modelName,
		CollectionName: "Vector_index_" + modelName,
		Type:           "dataset",
	}, nil
}

type fakeModelManager struct {
	err   error
	calls []string
}

func (f *fakeModelManager) GetModelInstance(_ context.Context, tenantID, provider string, modelType ModelType, model string) (*ModelInstance, error) {
	f.calls = append(f.calls, provider+"/"+model)
	if f.err != nil {
		return nil, f.err
	}
	return &ModelInstance{Provider: provider, Model: model, ModelType: modelType}, nil
}

type fakeFeatureService struct {
	features Features
	err      error
}

func (f *fakeFeatureService) GetFeatures(_ context.Context, _ string) (*Features, error) {
	if f.err != nil {
		return nil, f.err
	}
	feats := f.features
	return &feats, nil
}

package worker

import (
	"context"
	"fmt"

	"corpus/internal/models"
	"corpus/internal/services"
	"corpus/internal/store"
)

type fakeDatasetStore struct {
	datasets map[string]*models.Dataset
}

func newFakeDatasetStore(datasets ...*models.Dataset) *fakeDatasetStore {
	s := &fakeDatasetStore{datasets: map[string]*models.Dataset{}}
	for _, d := range datasets {
		s.datasets[d.ID] = d
	}
	return s
}

func (f *fakeDatasetStore) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	d, ok := f.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDatasetStore) UpdateDataset(_ context.Context, dataset *models.Dataset) error {
	f.datasets[dataset.ID] = dataset
	return nil
}

type fakeDocumentStore struct {
	documents map[string]*models.Document
	batches   [][]*models.Document
	updates   []*models.Document
}

func newFakeDocumentStore(documents ...*models.Document) *fakeDocumentStore {
	s := &fakeDocumentStore{documents: map[string]*models.Document{}}
	for _, d := range documents {
		s.documents[d.ID] = d
	}
	return s
}

func (f *fakeDocumentStore) GetDocument(_ context.Context, datasetID, documentID string) (*models.Document, error) {
	d, ok := f.documents[documentID]
	if !ok || d.DatasetID != datasetID {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDocumentStore) GetDocumentByID(_ context.Context, documentID string) (*models.Document, error) {
	d, ok := f.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDocumentStore) GetDocumentsByIDs(_ context.Context, datasetID string, ids []string) ([]*models.Document, error) {
	var out []*models.Document
	for _, id := range ids {
		if d, ok := f.documents[id]; ok && d.DatasetID == datasetID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) UpdateDocument(_ context.Context, document *models.Document) error {
	f.documents[document.ID] = document
	f.updates = append(f.updates, document)
	return nil
}

func (f *fakeDocumentStore) UpdateDocuments(_ context.Context, documents []*models.Document) error {
	for _, d := range documents {
		f.documents[d.ID] = d
	}
	f.batches = append(f.batches, documents)
	return nil
}

func (f *fakeDocumentStore) RenameDocument(_ context.Context, document *models.Document, _ string) error {
	f.documents[document.ID] = document
	return nil
}

type fakeRunner struct {
	err   error
	runs  [][]*models.Document
	onRun func(documents []*models.Document)
}

func (f *fakeRunner) Run(_ context.Context, documents []*models.Document) error {
	f.runs = append(f.runs, documents)
	if f.onRun != nil {
		f.onRun(documents)
	}
	return f.err
}

type fakeFeatureService struct {
	features services.Features
	err      error
}

func (f *fakeFeatureService) GetFeatures(_ context.Context, _ string) (*services.Features, error) {
	if f.err != nil {
		return nil, f.err
	}
	feats := f.features
	return &feats, nil
}

type indexingCall struct {
	Queue       string
	TenantID    string
	DatasetID   string
	DocumentIDs []string
}

type fakeJobClient struct {
	indexing []indexingCall
}

func (f *fakeJobClient) EnqueueDocumentIndexing(_ context.Context, queue, tenantID, datasetID string, documentIDs []string) error {
	f.indexing = append(f.indexing, indexingCall{Queue: queue, TenantID: tenantID, DatasetID: datasetID, DocumentIDs: documentIDs})
	return nil
}

func (f *fakeJobClient) EnqueueDocumentIndexingSync(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeJobClient) EnqueueRecoverDocumentIndexing(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeJobClient) EnqueueRetryDocumentIndexing(_ context.Context, _ string, _ []string, _ string) error {
	return nil
}

func (f *fakeJobClient) EnqueueAddDocumentToIndex(_ context.Context, _ string) error    { return nil }
func (f *fakeJobClient) EnqueueRemoveDocumentFromIndex(_ context.Context, _ string) error {
	return nil
}
func (f *fakeJobClient) EnqueueDealDatasetVectorIndex(_ context.Context, _, _ string) error {
	return nil
}
func (f *fakeJobClient) EnqueueRegenerateSummaryIndex(_ context.Context, _, _ string, _ bool) error {
	return nil
}
func (f *fakeJobClient) Close() error { return nil }

type enabledCall struct {
	DatasetID  string
	DocumentID string
	Enabled    bool
}

type fakeVectorStore struct {
	chunks          []store.StoredChunk
	enabledCalls    []enabledCall
	removedDocs     []string
	removedDatasets []string
	added           map[string][]store.VectorChunk
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{added: map[string][]store.VectorChunk{}}
}

func (f *fakeVectorStore) AddDocumentVectors(_ context.Context, _, documentID string, chunks []store.VectorChunk) error {
	f.added[documentID] = append(f.added[documentID], chunks...)
	return nil
}

func (f *fakeVectorStore) RemoveDocumentVectors(_ context.Context, _, documentID string) error {
	f.removedDocs = append(f.removedDocs, documentID)
	return nil
}

func (f *fakeVectorStore) RemoveDatasetVectors(_ context.Context, datasetID string) error {
	f.removedDatasets = append(f.removedDatasets, datasetID)
	return nil
}

func (f *fakeVectorStore) SetDocumentVectorsEnabled(_ context.Context, datasetID, documentID string, enabled bool) error {
	f.enabledCalls = append(f.enabledCalls, enabledCall{DatasetID: datasetID, DocumentID: documentID, Enabled: enabled})
	return nil
}

func (f *fakeVectorStore) ListDatasetChunks(_ context.Context, _ string) ([]store.StoredChunk, error) {
	return f.chunks, nil
}

func (f *fakeVectorStore) Ping(_ context.Context) error { return nil }

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

type fakeCredentialProvider struct {
	credentials map[string]string
	err         error
}

func (f *fakeCredentialProvider) GetDatasourceCredentials(_ context.Context, _, _, _, _ string) (map[string]string, error) {
	return f.credentials, f.err
}

type fakeExtractor struct {
	lastEdited string
	err        error
}

func (f *fakeExtractor) LastEditedTime(_ context.Context) (string, error) {
	return f.lastEdited, f.err
}

type fakeExtractorFactory struct {
	extractor *fakeExtractor
	params    []services.OnlineDocumentExtractorParams
}

func (f *fakeExtractorFactory) NewOnlineDocumentExtractor(params services.OnlineDocumentExtractorParams) (services.OnlineDocumentExtractor, error) {
	f.params = append(f.params, params)
	return f.extractor, nil
}

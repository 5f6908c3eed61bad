package store

import (
	"context"

	"corpus/internal/models"
)

// --- Job Client ---

// JobClient submits fire-and-forget background tasks to the execution
// backend. Callers never block on task completion and never consume a result.
type JobClient interface {
	// EnqueueDocumentIndexing submits one indexing batch onto the named
	// queue ("priority" or "normal").
	EnqueueDocumentIndexing(ctx context.Context, queue, tenantID, datasetID string, documentIDs []string) error
	EnqueueDocumentIndexingSync(ctx context.Context, datasetID, documentID string) error
	EnqueueRecoverDocumentIndexing(ctx context.Context, datasetID, documentID string) error
	EnqueueRetryDocumentIndexing(ctx context.Context, datasetID string, documentIDs []string, userID string) error
	EnqueueAddDocumentToIndex(ctx context.Context, documentID string) error
	EnqueueRemoveDocumentFromIndex(ctx context.Context, documentID string) error
	EnqueueDealDatasetVectorIndex(ctx context.Context, datasetID, action string) error
	EnqueueRegenerateSummaryIndex(ctx context.Context, datasetID, reason string, vectorsOnly bool) error
	Close() error
}

// --- Dataset Store ---

type DatasetStore interface {
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	UpdateDataset(ctx context.Context, dataset *models.Dataset) error
}

// --- Document Store ---

type DocumentStore interface {
	GetDocument(ctx context.Context, datasetID, documentID string) (*models.Document, error)
	GetDocumentByID(ctx context.Context, documentID string) (*models.Document, error)
	// GetDocumentsByIDs returns only the documents that exist; ids with no
	// row are silently dropped, preserving the order of the found rows.
	GetDocumentsByIDs(ctx context.Context, datasetID string, ids []string) ([]*models.Document, error)
	UpdateDocument(ctx context.Context, document *models.Document) error
	// UpdateDocuments applies every update in one transaction; either all
	// documents are persisted or none are.
	UpdateDocuments(ctx context.Context, documents []*models.Document) error
	// RenameDocument persists the document's current name and, when
	// uploadFileID is non-empty, the matching upload file's name in the same
	// transaction.
	RenameDocument(ctx context.Context, document *models.Document, uploadFileID string) error
}

// --- File Stores ---

type UploadFileStore interface {
	GetUploadFile(ctx context.Context, tenantID, id string) (*models.UploadFile, error)
	RenameUploadFile(ctx context.Context, tenantID, id, name string) error
}

type DatasourceFileStore interface {
	GetDatasourceFile(ctx context.Context, tenantID, id string) (*models.DatasourceFile, error)
}

// --- Binding Stores ---

type ExternalKnowledgeBindingStore interface {
	GetExternalKnowledgeBinding(ctx context.Context, tenantID, datasetID string) (*models.ExternalKnowledgeBinding, error)
	UpdateExternalKnowledgeBinding(ctx context.Context, binding *models.ExternalKnowledgeBinding) error
}

type CollectionBindingStore interface {
	// GetOrCreateCollectionBinding resolves the vector collection bound to
	// an embedding (provider, model) pair, creating the binding on first use.
	GetOrCreateCollectionBinding(ctx context.Context, providerName, modelName string) (*models.CollectionBinding, error)
}

// --- Vector Store ---

// VectorStore maintains per-document chunk vectors inside a dataset's
// collection.
type VectorStore interface {
	AddDocumentVectors(ctx context.Context, datasetID, documentID string, chunks []VectorChunk) error
	RemoveDocumentVectors(ctx context.Context, datasetID, documentID string) error
	RemoveDatasetVectors(ctx context.Context, datasetID string) error
	// SetDocumentVectorsEnabled flips a document's chunks in or out of the
	// retrievable set without dropping the stored vectors.
	SetDocumentVectorsEnabled(ctx context.Context, datasetID, documentID string, enabled bool) error
	// ListDatasetChunks returns every stored chunk text for a dataset,
	// grouped by document, for re-embedding after a model change.
	ListDatasetChunks(ctx context.Context, datasetID string) ([]StoredChunk, error)
	Ping(ctx context.Context) error
}

// VectorChunk is one embedded text chunk destined for the vector store.
type VectorChunk struct {
	ChunkText string
	Vector    []float32
	Metadata  map[string]any
}

// StoredChunk is a chunk text already persisted in a dataset collection.
type StoredChunk struct {
	DocumentID string
	ChunkText  string
}

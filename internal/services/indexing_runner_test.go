package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus/internal/models"
	"corpus/internal/redisx/redisxtest"
	"corpus/internal/store"
)

type fakeVectorStore struct {
	chunks      []store.StoredChunk
	added       map[string][]store.VectorChunk
	removedDocs []string
	err         error
}

func newFakeVectorStore(chunks ...store.StoredChunk) *fakeVectorStore {
	return &fakeVectorStore{chunks: chunks, added: map[string][]store.VectorChunk{}}
}

func (f *fakeVectorStore) AddDocumentVectors(_ context.Context, datasetID, documentID string, chunks []store.VectorChunk) error {
	f.added[datasetID+"/"+documentID] = chunks
	return f.err
}

func (f *fakeVectorStore) RemoveDocumentVectors(_ context.Context, datasetID, documentID string) error {
	f.removedDocs = append(f.removedDocs, datasetID+"/"+documentID)
	return f.err
}

func (f *fakeVectorStore) RemoveDatasetVectors(_ context.Context, _ string) error { return f.err }

func (f *fakeVectorStore) SetDocumentVectorsEnabled(_ context.Context, _, _ string, _ bool) error {
	return f.err
}

func (f *fakeVectorStore) ListDatasetChunks(_ context.Context, _ string) ([]store.StoredChunk, error) {
	return f.chunks, f.err
}

func (f *fakeVectorStore) Ping(_ context.Context) error { return nil }

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func indexableDocument(id string) *models.Document {
	return &models.Document{
		ID:             id,
		DatasetID:      "ds-1",
		TenantID:       "tenant-1",
		IndexingStatus: models.IndexingStatusParsing,
		Enabled:        true,
	}
}

func TestRunnerCompletesDocumentsAndReembedsChunks(t *testing.T) {
	documents := newFakeDocumentStore()
	vectors := newFakeVectorStore(
		store.StoredChunk{DocumentID: "doc-1", ChunkText: "alpha"},
		store.StoredChunk{DocumentID: "doc-1", ChunkText: "beta"},
		store.StoredChunk{DocumentID: "doc-2", ChunkText: "gamma"},
	)
	embedder := &fakeEmbedder{}
	rdb := redisxtest.New()
	runner := NewVectorIndexingRunner(documents, vectors, embedder, rdb)
	runner.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }

	doc := indexableDocument("doc-1")
	require.NoError(t, runner.Run(context.Background(), []*models.Document{doc}))

	assert.Equal(t, models.IndexingStatusCompleted, doc.IndexingStatus)
	require.NotNil(t, doc.CompletedAt)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"alpha", "beta"}, embedder.calls[0])
	assert.Equal(t, []string{"ds-1/doc-1"}, vectors.removedDocs)
	assert.Len(t, vectors.added["ds-1/doc-1"], 2)
}

func TestRunnerDocumentWithoutChunksStillCompletes(t *testing.T) {
	documents := newFakeDocumentStore()
	vectors := newFakeVectorStore()
	embedder := &fakeEmbedder{}
	runner := NewVectorIndexingRunner(documents, vectors, embedder, redisxtest.New())

	doc := indexableDocument("doc-1")
	require.NoError(t, runner.Run(context.Background(), []*models.Document{doc}))

	assert.Equal(t, models.IndexingStatusCompleted, doc.IndexingStatus)
	assert.Empty(t, embedder.calls)
	assert.Empty(t, vectors.removedDocs)
}

func TestRunnerStopsAtPauseCheckpoint(t *testing.T) {
	documents := newFakeDocumentStore()
	rdb := redisxtest.New()
	rdb.Set(pausedCacheKey("doc-2"), "True")
	runner := NewVectorIndexingRunner(documents, newFakeVectorStore(), &fakeEmbedder{}, rdb)

	first := indexableDocument("doc-1")
	second := indexableDocument("doc-2")
	err := runner.Run(context.Background(), []*models.Document{first, second})

	require.Error(t, err)
	assert.True(t, models.IsDocumentIsPausedError(err))
	assert.Equal(t, models.IndexingStatusCompleted, first.IndexingStatus)
	assert.Equal(t, models.IndexingStatusParsing, second.IndexingStatus)
}

func TestRunnerEmbedFailurePropagates(t *testing.T) {
	documents := newFakeDocumentStore()
	vectors := newFakeVectorStore(store.StoredChunk{DocumentID: "doc-1", ChunkText: "alpha"})
	embedder := &fakeEmbedder{err: fmt.Errorf("embedding backend down")}
	runner := NewVectorIndexingRunner(documents, vectors, embedder, redisxtest.New())

	err := runner.Run(context.Background(), []*models.Document{indexableDocument("doc-1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding backend down")
}

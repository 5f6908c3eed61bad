package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"corpus/internal/store"
)

// StoreImpl persists chunk embeddings in PostgreSQL with pgvector. Rows are
// scoped by dataset and document so a single document can be detached from
// retrieval without touching its neighbours.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.VectorStore = (*StoreImpl)(nil)

func NewStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector store DSN cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector store DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector store: %w", err)
	}
	return &StoreImpl{db: pool}, nil
}

func (vs *StoreImpl) Close() error {
	if vs.db != nil {
		vs.db.Close()
	}
	return nil
}

func (vs *StoreImpl) Ping(ctx context.Context) error {
	if vs.db == nil {
		return fmt.Errorf("vector store connection is not initialized")
	}
	return vs.db.Ping(ctx)
}

// AddDocumentVectors inserts a document's chunks in one transaction.
func (vs *StoreImpl) AddDocumentVectors(ctx context.Context, datasetID, documentID string, chunks []store.VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := vs.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vector insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO embeddings (id, dataset_id, document_id, chunk_text, vector, metadata, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)`
	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encode chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, query,
			uuid.NewString(), datasetID, documentID, chunk.ChunkText,
			pgvector.NewVector(chunk.Vector), meta,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return fmt.Errorf("document %s has no backing rows: %w", documentID, store.ErrForeignKeyViolation)
			}
			return fmt.Errorf("add vector for document %s: %w", documentID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vector insert: %w", err)
	}
	return nil
}

func (vs *StoreImpl) RemoveDocumentVectors(ctx context.Context, datasetID, documentID string) error {
	query := `DELETE FROM embeddings WHERE dataset_id = $1 AND document_id = $2`
	if _, err := vs.db.Exec(ctx, query, datasetID, documentID); err != nil {
		return fmt.Errorf("remove vectors for document %s: %w", documentID, err)
	}
	return nil
}

func (vs *StoreImpl) RemoveDatasetVectors(ctx context.Context, datasetID string) error {
	query := `DELETE FROM embeddings WHERE dataset_id = $1`
	if _, err := vs.db.Exec(ctx, query, datasetID); err != nil {
		return fmt.Errorf("remove vectors for dataset %s: %w", datasetID, err)
	}
	return nil
}

// SetDocumentVectorsEnabled flips a document's chunks in or out of the
// retrievable set while keeping the stored vectors.
func (vs *StoreImpl) SetDocumentVectorsEnabled(ctx context.Context, datasetID, documentID string, enabled bool) error {
	query := `UPDATE embeddings SET enabled = $3 WHERE dataset_id = $1 AND document_id = $2`
	if _, err := vs.db.Exec(ctx, query, datasetID, documentID, enabled); err != nil {
		return fmt.Errorf("set vectors enabled for document %s: %w", documentID, err)
	}
	return nil
}

func (vs *StoreImpl) ListDatasetChunks(ctx context.Context, datasetID string) ([]store.StoredChunk, error) {
	query := `SELECT document_id, chunk_text FROM embeddings WHERE dataset_id = $1 ORDER BY document_id`
	rows, err := vs.db.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for dataset %s: %w", datasetID, err)
	}
	defer rows.Close()

	var chunks []store.StoredChunk
	for rows.Next() {
		var chunk store.StoredChunk
		if err := rows.Scan(&chunk.DocumentID, &chunk.ChunkText); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}

package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"corpus/internal/models"
	"corpus/internal/store"
)

// --- Upload Files ---

func (s *StoreImpl) GetUploadFile(ctx context.Context, tenantID, id string) (*models.UploadFile, error) {
	query := `SELECT id, tenant_id, storage_type, key, name, size, extension, mime_type,
		source_url, used, created_by, created_at
		FROM upload_files WHERE id = $1 AND tenant_id = $2`
	file := &models.UploadFile{}
	err := s.db.QueryRow(ctx, query, id, tenantID).Scan(
		&file.ID, &file.TenantID, &file.StorageType, &file.Key, &file.Name,
		&file.Size, &file.Extension, &file.MimeType, &file.SourceURL,
		&file.Used, &file.CreatedBy, &file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get upload file %s: %w", id, err)
	}
	return file, nil
}

func (s *StoreImpl) RenameUploadFile(ctx context.Context, tenantID, id, name string) error {
	query := `UPDATE upload_files SET name = $3 WHERE id = $1 AND tenant_id = $2`
	tag, err := s.db.Exec(ctx, query, id, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to rename upload file %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Datasource Files ---

func (s *StoreImpl) GetDatasourceFile(ctx context.Context, tenantID, id string) (*models.DatasourceFile, error) {
	query := `SELECT id, tenant_id, key, mime_type, size, source_url, created_at
		FROM datasource_files WHERE id = $1 AND tenant_id = $2`
	file := &models.DatasourceFile{}
	err := s.db.QueryRow(ctx, query, id, tenantID).Scan(
		&file.ID, &file.TenantID, &file.Key, &file.MimeType,
		&file.Size, &file.SourceURL, &file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get datasource file %s: %w", id, err)
	}
	return file, nil
}

// Ensure StoreImpl satisfies the file store interfaces
var (
	_ store.UploadFileStore     = (*StoreImpl)(nil)
	_ store.DatasourceFileStore = (*StoreImpl)(nil)
)
